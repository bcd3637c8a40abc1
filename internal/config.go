package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/serendip/internal/cycle"
	"github.com/starford/serendip/internal/resolver"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var httpURLRe = regexp.MustCompile(`^https?://[^/\s]+`)

// Graph sources.
const (
	SourceLogseq = "logseq"
	SourceLocal  = "local"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Source   SourceConfig      `yaml:"source"`
	Logseq   LogseqConfig      `yaml:"logseq"`
	Graph    GraphConfig       `yaml:"graph"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Settings SettingsConfig    `yaml:"settings"`
	Cycle    CycleConfig       `yaml:"cycle"`
	Resolver ResolverConfig    `yaml:"resolver"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration. Sections for the unused source are
// not checked.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	switch c.Source.Kind {
	case SourceLogseq:
		if err := c.Logseq.Validate(); err != nil {
			return fmt.Errorf("logseq: %w", err)
		}
	case SourceLocal:
		if err := c.Graph.Validate(); err != nil {
			return fmt.Errorf("graph: %w", err)
		}
		if err := c.SQLite.Validate(); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
	}
	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if err := c.Cycle.Validate(); err != nil {
		return fmt.Errorf("cycle: %w", err)
	}
	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level    `yaml:"log_level"`
	LogFile  LogFileConfig `yaml:"log_file"`
	HTTP     HTTPConfig    `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.LogFile.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// LogFileConfig configures an optional rotating log file written next to
// the standard stream. An empty Path disables it.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Validate validates the log file configuration.
func (c *LogFileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig selects where candidates come from.
//
// Kind is one of:
//   - "logseq" (default): a running Logseq app reached over its HTTP API.
//   - "local": a graph directory on disk indexed into SQLite.
type SourceConfig struct {
	Kind string `yaml:"kind"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	if c.Kind == "" {
		c.Kind = SourceLogseq
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.In(SourceLogseq, SourceLocal)),
	)
}

// LogseqConfig holds the Logseq HTTP API connection settings.
type LogseqConfig struct {
	URL      string        `yaml:"url"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Validate validates the Logseq configuration.
func (c *LogseqConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, validation.Match(httpURLRe).Error("must be an http(s) URL")),
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
	)
}

// GraphConfig holds the path to a Logseq graph directory.
type GraphConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SettingsConfig locates the user settings file.
type SettingsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the settings configuration.
func (c *SettingsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// CycleConfig configures the repeating trigger.
type CycleConfig struct {
	Period time.Duration `yaml:"period"`
}

// Validate validates the cycle configuration.
func (c *CycleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Period, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// ResolverConfig bounds reference resolution.
type ResolverConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// Validate validates the resolver configuration.
func (c *ResolverConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxDepth, validation.Required, validation.Min(1)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogFile: LogFileConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Source: SourceConfig{
			Kind: SourceLogseq,
		},
		Logseq: LogseqConfig{
			URL:      "http://127.0.0.1:12315",
			Timeout:  10 * time.Second,
			CacheTTL: 30 * time.Second,
		},
		Graph: GraphConfig{
			Path: "./graph",
		},
		SQLite: SQLiteConfig{
			Path: "./serendip.db",
		},
		Settings: SettingsConfig{
			Path: "./settings.yaml",
		},
		Cycle: CycleConfig{
			Period: cycle.DefaultPeriod,
		},
		Resolver: ResolverConfig{
			MaxDepth: resolver.DefaultMaxDepth,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
