package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/graph"
	"github.com/starford/serendip/internal/models"
	"github.com/starford/serendip/internal/query"
	"github.com/starford/serendip/internal/settings"
)

var (
	_ graph.Source = (*FakeSource)(nil)
	_ graph.Host   = (*RecordingHost)(nil)
)

// FakeSource is an in-memory graph.Source. Rows returned by each query
// method are set directly; blocks and pages are looked up in the maps.
type FakeSource struct {
	mu sync.Mutex

	QueryRows     []any
	SimpleRows    []any
	NamespaceRows []any
	QueryErr      error

	Blocks map[string]*models.Block
	Pages  map[int64]*models.Page

	// Calls records method names in call order.
	Calls []string
	// Queries records every query passed to ExecuteQuery or ExecuteSimpleQuery.
	Queries []*query.Query
}

// NewFakeSource returns an empty FakeSource.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		Blocks: make(map[string]*models.Block),
		Pages:  make(map[int64]*models.Page),
	}
}

// AddBlock registers b under its UUID.
func (f *FakeSource) AddBlock(b *models.Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Blocks[strings.ToLower(b.UUID)] = b
}

// AddPage registers p under its ID.
func (f *FakeSource) AddPage(p *models.Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pages[p.ID] = p
}

func (f *FakeSource) record(name string, q *query.Query) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, name)
	if q != nil {
		f.Queries = append(f.Queries, q)
	}
}

// CallLog returns a copy of the recorded method names.
func (f *FakeSource) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *FakeSource) ExecuteQuery(_ context.Context, q *query.Query) ([]any, error) {
	f.record("ExecuteQuery", q)
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return f.QueryRows, nil
}

func (f *FakeSource) ExecuteSimpleQuery(_ context.Context, q *query.Query) ([]any, error) {
	f.record("ExecuteSimpleQuery", q)
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return f.SimpleRows, nil
}

func (f *FakeSource) LookupNamespace(_ context.Context, namespace string) ([]any, error) {
	f.record("LookupNamespace", nil)
	return f.NamespaceRows, nil
}

func (f *FakeSource) GetBlock(_ context.Context, id string) (*models.Block, error) {
	f.record("GetBlock", nil)
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.Blocks[strings.ToLower(id)]; ok {
		return b, nil
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		for _, b := range f.Blocks {
			if b.ID == n {
				return b, nil
			}
		}
	}
	return nil, fmt.Errorf("block %s: %w", id, apperr.ErrNotFound)
}

func (f *FakeSource) GetPage(_ context.Context, id int64) (*models.Page, error) {
	f.record("GetPage", nil)
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Pages[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("page %d: %w", id, apperr.ErrNotFound)
}

// Notice is one recorded notification.
type Notice struct {
	Message  string
	Severity graph.Severity
}

// RecordingHost is a graph.Host that records every call.
type RecordingHost struct {
	mu      sync.Mutex
	main    []string
	side    []string
	notices []Notice
}

func (h *RecordingHost) NavigateMain(_ context.Context, target string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.main = append(h.main, target)
	return nil
}

func (h *RecordingHost) NavigateSide(_ context.Context, uuid string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.side = append(h.side, uuid)
	return nil
}

func (h *RecordingHost) Notify(_ context.Context, message string, severity graph.Severity) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notices = append(h.notices, Notice{Message: message, Severity: severity})
	return nil
}

// Main returns the main-view targets in call order.
func (h *RecordingHost) Main() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.main...)
}

// Side returns the side-view uuids in call order.
func (h *RecordingHost) Side() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.side...)
}

// Notices returns the notifications in call order.
func (h *RecordingHost) Notices() []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Notice(nil), h.notices...)
}

// MemSettings is an in-memory settings store.
type MemSettings struct {
	mu sync.Mutex
	s  settings.Settings
	// Loads counts Load calls.
	Loads int
}

// NewMemSettings returns a store holding s.
func NewMemSettings(s settings.Settings) *MemSettings {
	return &MemSettings{s: s}
}

func (m *MemSettings) Load(_ context.Context) (settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loads++
	return m.s, nil
}

func (m *MemSettings) SetMode(_ context.Context, mode string) (settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !settings.ValidMode(mode) {
		return m.s, fmt.Errorf("%q: %w", mode, apperr.ErrInvalidMode)
	}
	m.s.RandomMode = mode
	return m.s, nil
}

// Set replaces the stored settings.
func (m *MemSettings) Set(s settings.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
}
