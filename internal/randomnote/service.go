// Package randomnote runs the random selection pipeline: build a query from
// the current settings, execute it, pick candidates and navigate to them.
package randomnote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/graph"
	"github.com/starford/serendip/internal/metrics"
	"github.com/starford/serendip/internal/models"
	"github.com/starford/serendip/internal/picker"
	"github.com/starford/serendip/internal/query"
	"github.com/starford/serendip/internal/resolver"
	"github.com/starford/serendip/internal/settings"
)

// Messages shown through the Notifier.
const (
	msgTagsRequired      = "Random tags are required."
	msgNamespaceRequired = "A namespace is required."
	msgQueryFailed       = "Maybe something wrong with the query or namespace"
)

// SettingsStore is the settings persistence the service reads on every run.
type SettingsStore interface {
	Load(ctx context.Context) (settings.Settings, error)
	SetMode(ctx context.Context, mode string) (settings.Settings, error)
}

// Result describes one pipeline run.
type Result struct {
	Mode     string             `json:"mode"`
	Query    string             `json:"query,omitempty"`
	Found    int                `json:"found"`
	Primary  *models.Candidate  `json:"primary,omitempty"`
	Content  string             `json:"content,omitempty"`
	Side     []models.Candidate `json:"side,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

// Service coordinates settings, the graph source, and the host.
type Service struct {
	settings SettingsStore
	source   graph.Source
	nav      graph.Navigator
	notifier graph.Notifier
	picker   *picker.Picker
	resolver *resolver.Resolver
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPicker replaces the default random picker.
func WithPicker(p *picker.Picker) Option {
	return func(s *Service) { s.picker = p }
}

// WithResolver replaces the default resolver built over the source.
func WithResolver(r *resolver.Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates the selection service.
func NewService(store SettingsStore, source graph.Source, host graph.Host, opts ...Option) *Service {
	s := &Service{
		settings: store,
		source:   source,
		nav:      host,
		notifier: host,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.picker == nil {
		s.picker = picker.New()
	}
	if s.resolver == nil {
		s.resolver = resolver.New(source)
	}
	return s
}

// Resolver returns the resolver used for primary blocks.
func (s *Service) Resolver() *resolver.Resolver { return s.resolver }

// Run executes one selection with the settings currently on disk.
// Configuration problems do not stop the run; they are reported in
// Result.Warnings. An empty candidate set returns apperr.ErrEmptyResult.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	mode := query.FromSettings(cfg)
	if d, ok := mode.(query.DefaultMode); ok && d.Requested != "" {
		s.logger.Warn("unknown random mode, using default query", slog.String("mode", d.Requested))
	}
	res := &Result{Mode: mode.Name()}

	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues(res.Mode).Observe(time.Since(start).Seconds())
	}()

	q, err := query.Build(mode)
	switch {
	case errors.Is(err, apperr.ErrConfiguration):
		res.Warnings = append(res.Warnings, msgTagsRequired)
	case err != nil:
		return res, err
	}
	if q != nil {
		res.Query = q.Text
	}

	rows, err := s.fetch(ctx, mode, q, res)
	if err != nil {
		return res, err
	}

	candidates := s.replacePreBlocks(ctx, graph.Normalize(graph.Flatten(rows)))
	res.Found = len(candidates)
	if len(candidates) == 0 {
		return res, apperr.ErrEmptyResult
	}

	primary, err := picker.Pick(s.picker, candidates)
	if err != nil {
		return res, err
	}
	res.Primary = &primary
	if res.Content, err = s.openMain(ctx, primary); err != nil {
		return res, err
	}

	for i := 1; i < cfg.Steps(); i++ {
		c, err := picker.Pick(s.picker, candidates)
		if err != nil {
			return res, err
		}
		if err := s.nav.NavigateSide(ctx, sideTarget(c)); err != nil {
			return res, fmt.Errorf("navigate side: %w", err)
		}
		metrics.Picks.WithLabelValues("side", c.Kind()).Inc()
		res.Side = append(res.Side, c)
	}

	s.logger.Debug("random note opened",
		slog.String("mode", res.Mode),
		slog.Int("candidates", res.Found),
		slog.String("kind", primary.Kind()),
		slog.Int("side", len(res.Side)))
	return res, nil
}

// Trigger runs the pipeline and reports problems to the user: configuration
// problems as warnings, failures as errors. An empty result is silent.
// The returned values are those of Run.
func (s *Service) Trigger(ctx context.Context) (*Result, error) {
	res, err := s.Run(ctx)

	mode := "unknown"
	if res != nil {
		mode = res.Mode
		for _, w := range res.Warnings {
			s.notify(ctx, w, graph.SeverityWarning)
		}
	}

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
		if res != nil && len(res.Warnings) > 0 {
			outcome = metrics.OutcomeWarning
		}
	case errors.Is(err, apperr.ErrEmptyResult):
		outcome = metrics.OutcomeEmpty
		s.logger.Debug("random note: no candidates", slog.String("mode", mode))
	default:
		outcome = metrics.OutcomeError
		s.logger.Warn("random note failed", slog.String("mode", mode), slog.String("error", err.Error()))
		msg := err.Error()
		if msg == "" {
			msg = msgQueryFailed
		}
		s.notify(ctx, msg, graph.SeverityError)
	}
	metrics.PipelineRuns.WithLabelValues(mode, outcome).Inc()
	return res, err
}

// SetMode stores mode as the random mode and, when trigger is set, runs the
// pipeline with the new settings.
func (s *Service) SetMode(ctx context.Context, mode string, trigger bool) (settings.Settings, *Result, error) {
	cfg, err := s.settings.SetMode(ctx, mode)
	if err != nil {
		return cfg, nil, err
	}
	s.logger.Info("random mode set", slog.String("mode", mode))
	if !trigger {
		return cfg, nil, nil
	}
	res, err := s.Trigger(ctx)
	return cfg, res, err
}

// CurrentQuery builds the query for the stored settings without running it.
func (s *Service) CurrentQuery(ctx context.Context) (query.Mode, *query.Query, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}
	mode := query.FromSettings(cfg)
	q, err := query.Build(mode)
	return mode, q, err
}

func (s *Service) fetch(ctx context.Context, mode query.Mode, q *query.Query, res *Result) ([]any, error) {
	switch m := mode.(type) {
	case query.NamespaceMode:
		if m.Namespace == "" {
			res.Warnings = append(res.Warnings, msgNamespaceRequired)
			return nil, nil
		}
		rows, err := s.source.LookupNamespace(ctx, m.Namespace)
		if err != nil {
			return nil, fmt.Errorf("namespace %q: %w", m.Namespace, err)
		}
		return rows, nil
	case query.SimpleQueryMode:
		return s.source.ExecuteSimpleQuery(ctx, q)
	default:
		return s.source.ExecuteQuery(ctx, q)
	}
}

// replacePreBlocks swaps each pre-block for its owning page. Pre-blocks whose
// page cannot be fetched are dropped.
func (s *Service) replacePreBlocks(ctx context.Context, in []models.Candidate) []models.Candidate {
	out := in[:0]
	for _, c := range in {
		if !c.IsBlock() || !c.Block.PreBlock {
			out = append(out, c)
			continue
		}
		p, err := s.source.GetPage(ctx, c.Block.PageID)
		if err != nil {
			s.logger.Debug("pre-block page missing",
				slog.Int64("page_id", c.Block.PageID),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, models.PageCandidate(p))
	}
	return out
}

// openMain navigates the main view to c. For a block it returns the resolved
// text; a block that no longer resolves yields empty text.
func (s *Service) openMain(ctx context.Context, c models.Candidate) (string, error) {
	defer metrics.Picks.WithLabelValues("main", c.Kind()).Inc()

	if c.IsPage() {
		if err := s.nav.NavigateMain(ctx, c.Page.Name); err != nil {
			return "", fmt.Errorf("navigate main: %w", err)
		}
		return "", nil
	}

	id := blockID(c.Block)
	target := c.Block.UUID
	if b, err := s.source.GetBlock(ctx, id); err == nil {
		target = b.UUID
		id = b.UUID
	} else {
		s.logger.Debug("primary block fetch failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	if err := s.nav.NavigateMain(ctx, target); err != nil {
		return "", fmt.Errorf("navigate main: %w", err)
	}

	content, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Debug("resolve failed", slog.String("id", id), slog.String("error", err.Error()))
		return "", nil
	}
	return content, nil
}

func blockID(b *models.Block) string {
	if b.UUID != "" {
		return b.UUID
	}
	return strconv.FormatInt(b.ID, 10)
}

// sideTarget is the uuid of c, falling back to the page name for pages known
// only by name.
func sideTarget(c models.Candidate) string {
	if id := c.UUID(); id != "" {
		return id
	}
	if c.IsPage() {
		return c.Page.Name
	}
	return strconv.FormatInt(c.Block.ID, 10)
}

func (s *Service) notify(ctx context.Context, msg string, sev graph.Severity) {
	if err := s.notifier.Notify(ctx, msg, sev); err != nil {
		s.logger.Warn("notify failed", slog.String("error", err.Error()))
	}
}
