package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/serendip/internal/graph"
	"github.com/starford/serendip/internal/index"
	"github.com/starford/serendip/internal/logseq"
	"github.com/starford/serendip/internal/metrics"
	"github.com/starford/serendip/internal/randomnote"
	"github.com/starford/serendip/internal/resolver"
	"github.com/starford/serendip/internal/settings"
	"github.com/starford/serendip/internal/storage"
)

// components are the long-lived pieces shared by every command.
type components struct {
	cfg      *Config
	logger   *slog.Logger
	settings *settings.Store

	// Exactly one of logseq or db is set after openSource.
	source graph.Source
	logseq *logseq.Client
	db     *index.DB
	graph  *storage.FS

	closers []io.Closer
}

// setup applies opts, builds the logger, and opens the settings store.
func setup(opts []Option) (*application, *components, error) {
	app := &application{logOut: os.Stdout, out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger, logCloser := newLogger(cfg.App, app.logOut)
	slog.SetDefault(logger)

	c := &components{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	store, err := settings.NewStore(cfg.Settings.Path)
	if err != nil {
		c.close()
		return nil, nil, fmt.Errorf("init settings: %w", err)
	}
	c.settings = store
	return app, c, nil
}

// openSource connects to the configured graph source. A local graph is
// synced into the index before openSource returns.
func (c *components) openSource(ctx context.Context) error {
	cfg := c.cfg
	switch cfg.Source.Kind {
	case SourceLocal:
		fs, err := storage.NewFS(cfg.Graph.Path)
		if err != nil {
			return fmt.Errorf("init graph storage: %w", err)
		}
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("init index: %w", err)
		}
		c.closers = append(c.closers, db)
		c.graph, c.db, c.source = fs, db, db

		if err := index.Sync(ctx, db, fs, c.logger); err != nil {
			c.logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
		c.refreshIndexMetrics(ctx)
	default:
		c.logseq = logseq.New(cfg.Logseq.URL, cfg.Logseq.Token,
			logseq.WithTimeout(cfg.Logseq.Timeout),
			logseq.WithPageCacheTTL(cfg.Logseq.CacheTTL),
			logseq.WithLogger(c.logger),
		)
		c.source = c.logseq
	}
	return nil
}

// hosts returns the graph app itself as a host when there is one, followed
// by extra.
func (c *components) hosts(extra ...graph.Host) graph.Host {
	var hs []graph.Host
	if c.logseq != nil {
		hs = append(hs, c.logseq)
	}
	return graph.Tee(append(hs, extra...)...)
}

func (c *components) service(host graph.Host) *randomnote.Service {
	return randomnote.NewService(c.settings, c.source, host,
		randomnote.WithResolver(resolver.New(c.source, resolver.WithMaxDepth(c.cfg.Resolver.MaxDepth))),
		randomnote.WithLogger(c.logger),
	)
}

// ready reports whether the graph source can serve requests.
func (c *components) ready(ctx context.Context) error {
	switch {
	case c.logseq != nil:
		return c.logseq.Ping(ctx)
	case c.db != nil:
		_, _, err := c.db.Stats(ctx)
		return err
	}
	return errors.New("no graph source")
}

func (c *components) refreshIndexMetrics(ctx context.Context) {
	if c.db == nil {
		return
	}
	pages, blocks, err := c.db.Stats(ctx)
	if err != nil {
		c.logger.Warn("index stats failed", slog.String("error", err.Error()))
		return
	}
	metrics.IndexedEntities.WithLabelValues("page").Set(float64(pages))
	metrics.IndexedEntities.WithLabelValues("block").Set(float64(blocks))
}

// watch keeps a local index current until ctx is done. cb may be nil.
func (c *components) watch(ctx context.Context, cb index.EventCallback) error {
	if c.db == nil {
		return nil
	}
	return index.Watch(ctx, c.db, c.graph, c.graph.Root(), c.logger, func(kind, path string) {
		c.refreshIndexMetrics(ctx)
		if cb != nil {
			cb(kind, path)
		}
	})
}

// close releases resources in reverse order of acquisition.
func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}
