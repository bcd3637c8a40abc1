package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logOut io.Writer
	out    io.Writer
	plain  bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sets where structured logs are written. The default is
// stdout; the MCP server needs stderr because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

// WithConsole sets where one-shot commands print navigation and notices.
// plain disables colors.
func WithConsole(w io.Writer, plain bool) Option {
	return func(a *application) {
		a.out = w
		a.plain = plain
	}
}
