// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/serendip/internal/api"
	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/console"
	"github.com/starford/serendip/internal/cycle"
	"github.com/starford/serendip/internal/mcpserver"
	"github.com/starford/serendip/internal/metrics"
	"github.com/starford/serendip/internal/randomnote"
	"github.com/starford/serendip/internal/settings"
	"github.com/starford/serendip/internal/sse"
)

const readyTimeout = 3 * time.Second

// Run starts the HTTP daemon with the given options.
func Run(ctx context.Context, opts ...Option) error {
	_, c, err := setup(opts)
	if err != nil {
		return err
	}
	defer c.close()
	cfg := c.cfg
	logger := c.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source", cfg.Source.Kind),
		slog.String("settings_path", cfg.Settings.Path),
		slog.Duration("cycle_period", cfg.Cycle.Period),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := c.openSource(ctx); err != nil {
		return err
	}

	// SSE broker and the host that publishes to it.
	broker := sse.NewBroker()
	defer broker.Close()
	events := sse.NewHost(broker)

	svc := c.service(c.hosts(events))

	g, gCtx := errgroup.WithContext(ctx)

	sched := cycle.New(gCtx, func(ctx context.Context) { _, _ = svc.Trigger(ctx) },
		cycle.WithPeriod(cfg.Cycle.Period),
		cycle.WithLogger(logger),
		cycle.OnChange(func(s cycle.State) {
			events.PublishCycleState(s)
			if s == cycle.Running {
				metrics.CycleRunning.Set(1)
			} else {
				metrics.CycleRunning.Set(0)
			}
		}),
	)
	defer sched.Close()

	apiRouter := api.NewRouter(api.Deps{
		Service:  svc,
		Cycle:    sched,
		Settings: c.settings,
		Events:   broker,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		if err := c.ready(ctx); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Keep a local index current and tell subscribers about changes.
	g.Go(func() error {
		if err := c.watch(gCtx, broker.PublishPageChange); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		sched.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// Pick runs the selection once, printing navigation and notices to the
// console and, for a block, its resolved content.
func Pick(ctx context.Context, opts ...Option) (*randomnote.Result, error) {
	app, c, err := setup(opts)
	if err != nil {
		return nil, err
	}
	defer c.close()

	if err := c.openSource(ctx); err != nil {
		return nil, err
	}
	out := console.New(app.out, app.plain)
	res, err := c.service(c.hosts(out)).Trigger(ctx)
	if err != nil {
		return res, err
	}
	if res.Content != "" {
		_ = out.Content(res.Content)
	}
	return res, nil
}

// SetMode stores mode as the random mode. With trigger set it then runs the
// selection once, like Pick.
func SetMode(ctx context.Context, mode string, trigger bool, opts ...Option) (settings.Settings, *randomnote.Result, error) {
	app, c, err := setup(opts)
	if err != nil {
		return settings.Settings{}, nil, err
	}
	defer c.close()

	if !trigger {
		cfg, err := c.settings.SetMode(ctx, mode)
		if err == nil {
			c.logger.Info("random mode set", slog.String("mode", mode))
		}
		return cfg, nil, err
	}
	if !settings.ValidMode(mode) {
		return settings.Settings{}, nil, fmt.Errorf("%w: %q", apperr.ErrInvalidMode, mode)
	}
	if err := c.openSource(ctx); err != nil {
		return settings.Settings{}, nil, err
	}
	out := console.New(app.out, app.plain)
	cfg, res, err := c.service(c.hosts(out)).SetMode(ctx, mode, true)
	if err == nil && res != nil && res.Content != "" {
		_ = out.Content(res.Content)
	}
	return cfg, res, err
}

// Resolve returns the text of block id with its embedded references expanded.
func Resolve(ctx context.Context, id string, opts ...Option) (string, error) {
	_, c, err := setup(opts)
	if err != nil {
		return "", err
	}
	defer c.close()

	if err := c.openSource(ctx); err != nil {
		return "", err
	}
	return c.service(c.hosts()).Resolver().Resolve(ctx, id)
}

// ServeMCP serves the MCP tools over stdio until stdin closes or ctx is done.
// Logs go to stderr unless WithLogOutput says otherwise.
func ServeMCP(ctx context.Context, opts ...Option) error {
	_, c, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.openSource(ctx); err != nil {
		return err
	}
	svc := c.service(c.hosts())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := cycle.New(ctx, func(ctx context.Context) { _, _ = svc.Trigger(ctx) },
		cycle.WithPeriod(c.cfg.Cycle.Period),
		cycle.WithLogger(c.logger),
	)
	defer sched.Close()

	go func() {
		if err := c.watch(ctx, nil); err != nil {
			c.logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	c.logger.Info("MCP server starting on stdio", slog.String("source", c.cfg.Source.Kind))
	return mcpserver.New(svc, sched, c.settings).ServeStdio()
}
