package internal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/settings"
)

// localConfig returns a config for a local graph made of files.
func localConfig(t *testing.T, files map[string]string) *Config {
	t.Helper()
	dir := t.TempDir()
	graphDir := filepath.Join(dir, "graph")
	for rel, content := range files {
		p := filepath.Join(graphDir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(graphDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	cfg.Source.Kind = SourceLocal
	cfg.Graph.Path = graphDir
	cfg.SQLite.Path = filepath.Join(dir, "index.db")
	cfg.Settings.Path = filepath.Join(dir, "settings.yaml")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestSetupRequiresConfig(t *testing.T) {
	if _, _, err := setup(nil); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestPickLocalGraph(t *testing.T) {
	cfg := localConfig(t, map[string]string{
		"pages/solo.md":            "- hello\n",
		"journals/2024_01_02.md":   "- diary\n",
		"logseq/bak/pages/solo.md": "- stale\n",
	})
	var out bytes.Buffer

	res, err := Pick(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard), WithConsole(&out, true))
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if res.Primary == nil || res.Primary.Page == nil || res.Primary.Page.Name != "solo" {
		t.Errorf("primary = %+v", res.Primary)
	}
	if got := out.String(); got != "→ solo\n" {
		t.Errorf("console = %q", got)
	}
}

func TestPickEmptyGraph(t *testing.T) {
	cfg := localConfig(t, nil)
	var out bytes.Buffer

	_, err := Pick(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard), WithConsole(&out, true))
	if !errors.Is(err, apperr.ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
	if out.Len() != 0 {
		t.Errorf("empty result should print nothing, got %q", out.String())
	}
}

func TestSetModeStoresWithoutRunning(t *testing.T) {
	cfg := localConfig(t, nil)

	got, res, err := SetMode(context.Background(), settings.ModeCard, false,
		WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil without trigger", res)
	}
	if got.RandomMode != settings.ModeCard {
		t.Errorf("returned mode = %q", got.RandomMode)
	}

	store, err := settings.NewStore(cfg.Settings.Path)
	if err != nil {
		t.Fatal(err)
	}
	s, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.RandomMode != settings.ModeCard {
		t.Errorf("stored mode = %q", s.RandomMode)
	}
	if _, err := os.Stat(cfg.SQLite.Path); !os.IsNotExist(err) {
		t.Errorf("index opened without trigger: stat err = %v", err)
	}
}

func TestSetModeInvalid(t *testing.T) {
	cfg := localConfig(t, nil)
	for _, trigger := range []bool{false, true} {
		_, _, err := SetMode(context.Background(), "everything", trigger,
			WithConfig(cfg), WithLogOutput(io.Discard))
		if !errors.Is(err, apperr.ErrInvalidMode) {
			t.Errorf("trigger=%v: err = %v, want ErrInvalidMode", trigger, err)
		}
	}
}

func TestSetModeAndGoPrintsContent(t *testing.T) {
	cfg := localConfig(t, map[string]string{
		"pages/quote.md": "- inner thought\n  id:: 00000000-0000-4000-8000-000000000001\n",
		"pages/deck.md":  "- ((00000000-0000-4000-8000-000000000001)) says #card\n  id:: 00000000-0000-4000-8000-000000000002\n",
	})
	var out bytes.Buffer

	_, res, err := SetMode(context.Background(), settings.ModeCard, true,
		WithConfig(cfg), WithLogOutput(io.Discard), WithConsole(&out, true))
	if err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if res.Content != "inner thought says #card" {
		t.Errorf("content = %q", res.Content)
	}
	want := "→ 00000000-0000-4000-8000-000000000002\n  inner thought says #card\n"
	if got := out.String(); got != want {
		t.Errorf("console = %q, want %q", got, want)
	}
}

func TestResolveLocalGraph(t *testing.T) {
	cfg := localConfig(t, map[string]string{
		"pages/a.md": "- first\n  id:: 00000000-0000-4000-8000-00000000000a\n",
		"pages/b.md": "- ((00000000-0000-4000-8000-00000000000a)) and second\n  id:: 00000000-0000-4000-8000-00000000000b\n",
	})

	got, err := Resolve(context.Background(), "00000000-0000-4000-8000-00000000000b",
		WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "first and second" {
		t.Errorf("content = %q", got)
	}

	_, err = Resolve(context.Background(), "00000000-0000-4000-8000-0000000000ff",
		WithConfig(cfg), WithLogOutput(io.Discard))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing block: err = %v", err)
	}
}

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	cfg := NewDefaultConfig().App
	cfg.LogFile.Path = filepath.Join(t.TempDir(), "serendip.log")
	var out bytes.Buffer

	logger, closer := newLogger(cfg, &out)
	logger.Info("hello", "k", "v")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(cfg.LogFile.Path)
	if err != nil {
		t.Fatal(err)
	}
	for name, got := range map[string]string{"stream": out.String(), "file": string(data)} {
		if !strings.Contains(got, `"msg":"hello"`) || !strings.Contains(got, `"k":"v"`) {
			t.Errorf("%s output = %q", name, got)
		}
	}
}
