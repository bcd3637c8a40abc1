// Package logseq is a client for the Logseq desktop app's HTTP API server.
// It implements graph.Source and graph.Host against a running graph.
package logseq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/graph"
	"github.com/starford/serendip/internal/models"
	"github.com/starford/serendip/internal/query"
)

var (
	_ graph.Source = (*Client)(nil)
	_ graph.Host   = (*Client)(nil)
)

// API methods.
const (
	methodDatascriptQuery  = "logseq.DB.datascriptQuery"
	methodSimpleQuery      = "logseq.DB.q"
	methodPagesInNamespace = "logseq.Editor.getPagesFromNamespace"
	methodGetBlock         = "logseq.Editor.getBlock"
	methodGetPage          = "logseq.Editor.getPage"
	methodPushState        = "logseq.App.pushState"
	methodOpenInSidebar    = "logseq.Editor.openInRightSidebar"
	methodShowMsg          = "logseq.UI.showMsg"
	methodGetCurrentGraph  = "logseq.App.getCurrentGraph"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultPageCacheTTL = 30 * time.Second
)

// APIError is a non-2xx answer from the API server.
type APIError struct {
	StatusCode int
	Method     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("logseq %s (status %d): %s", e.Method, e.StatusCode, e.Message)
}

type rpcRequest struct {
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// Client talks to POST {baseURL}/api.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	pages      *cache.Cache
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithPageCacheTTL sets how long fetched pages are reused. Zero disables caching.
func WithPageCacheTTL(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.pages = nil
			return
		}
		c.pages = cache.New(d, 2*d)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the API server at baseURL authorized by token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		pages:      cache.New(defaultPageCacheTTL, 2*defaultPageCacheTTL),
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// call invokes method and returns the raw JSON result.
func (c *Client) call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(rpcRequest{Method: method, Args: args})
	if err != nil {
		return nil, fmt.Errorf("logseq: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("logseq: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("logseq: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("logseq: read %s response: %w", method, err)
	}
	c.logger.Debug("logseq: call",
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)))

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Method: method, Message: errorMessage(respBody)}
	}
	// Some methods answer {"error": "..."} with status 200.
	if msg := embeddedError(respBody); msg != "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Method: method, Message: msg}
	}
	return respBody, nil
}

func errorMessage(body []byte) string {
	if msg := embeddedError(body); msg != "" {
		return msg
	}
	return strings.TrimSpace(string(body))
}

func embeddedError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &e) != nil {
		return ""
	}
	return e.Error
}

// decode reads raw into v, keeping numbers as json.Number. It reports
// false for an empty or null result.
func decode(raw json.RawMessage, v any) (bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return false, fmt.Errorf("logseq: decode: %w", err)
	}
	return true, nil
}

// rows executes a query method. Host rejections wrap apperr.ErrExecution.
func (c *Client) rows(ctx context.Context, method string, args ...any) ([]any, error) {
	raw, err := c.call(ctx, method, args...)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrExecution, apiErr.Message)
		}
		return nil, err
	}
	var out []any
	if _, err := decode(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrExecution, err)
	}
	return out, nil
}

// ExecuteQuery runs q.Text as a datascript query, or as a simple query when
// q.Lang is query.Simple.
func (c *Client) ExecuteQuery(ctx context.Context, q *query.Query) ([]any, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil query", apperr.ErrExecution)
	}
	if q.Lang == query.Simple {
		return c.ExecuteSimpleQuery(ctx, q)
	}
	return c.rows(ctx, methodDatascriptQuery, q.Text)
}

// ExecuteSimpleQuery runs q.Text through logseq.DB.q.
func (c *Client) ExecuteSimpleQuery(ctx context.Context, q *query.Query) ([]any, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil query", apperr.ErrExecution)
	}
	return c.rows(ctx, methodSimpleQuery, q.Text)
}

// LookupNamespace returns the pages under namespace.
func (c *Client) LookupNamespace(ctx context.Context, namespace string) ([]any, error) {
	return c.rows(ctx, methodPagesInNamespace, namespace)
}

// GetBlock fetches a block by uuid or numeric entity id.
func (c *Client) GetBlock(ctx context.Context, id string) (*models.Block, error) {
	var arg any = id
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		arg = n
	}
	raw, err := c.call(ctx, methodGetBlock, arg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	ok, err := decode(raw, &m)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("block %s: %w", id, apperr.ErrNotFound)
	}
	b, ok := graph.BlockFromMap(m)
	if !ok {
		return nil, fmt.Errorf("block %s: unexpected shape: %w", id, apperr.ErrNotFound)
	}
	return b, nil
}

// GetPage fetches a page by entity id. Pages are cached for the configured TTL.
func (c *Client) GetPage(ctx context.Context, id int64) (*models.Page, error) {
	key := strconv.FormatInt(id, 10)
	if c.pages != nil {
		if p, ok := c.pages.Get(key); ok {
			return p.(*models.Page), nil
		}
	}
	raw, err := c.call(ctx, methodGetPage, id)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	ok, err := decode(raw, &m)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("page %d: %w", id, apperr.ErrNotFound)
	}
	p, ok := graph.PageFromMap(m)
	if !ok {
		return nil, fmt.Errorf("page %d: unexpected shape: %w", id, apperr.ErrNotFound)
	}
	if c.pages != nil {
		c.pages.SetDefault(key, p)
	}
	return p, nil
}

// NavigateMain routes the main view to a page name or block uuid.
func (c *Client) NavigateMain(ctx context.Context, target string) error {
	_, err := c.call(ctx, methodPushState, "page", map[string]string{"name": target})
	return err
}

// NavigateSide opens the entity in the right sidebar.
func (c *Client) NavigateSide(ctx context.Context, uuid string) error {
	_, err := c.call(ctx, methodOpenInSidebar, uuid)
	return err
}

// Notify shows a toast in the app.
func (c *Client) Notify(ctx context.Context, message string, severity graph.Severity) error {
	_, err := c.call(ctx, methodShowMsg, message, string(severity))
	return err
}

// Ping checks that the API server answers and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, methodGetCurrentGraph)
	return err
}
