// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the random note tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/cycle"
	"github.com/starford/serendip/internal/query"
	"github.com/starford/serendip/internal/randomnote"
	"github.com/starford/serendip/internal/settings"
)

const modesURI = "serendip://modes"

// Server wraps the MCP server with the random note tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *randomnote.Service
	cycle    *cycle.Scheduler
	settings randomnote.SettingsStore
}

// New creates a new MCP server with all tools registered.
func New(svc *randomnote.Service, sched *cycle.Scheduler, store randomnote.SettingsStore) *Server {
	s := &Server{svc: svc, cycle: sched, settings: store}

	s.mcp = server.NewMCPServer(
		"serendip",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("random_note",
		mcp.WithDescription("Open a random page or block chosen by the stored random mode. "+
			"Returns the chosen candidate, its resolved content and any side picks."),
	), s.randomNote)

	s.mcp.AddTool(mcp.NewTool("set_random_mode",
		mcp.WithDescription("Store a new random mode. Read the serendip://modes resource for what each mode selects."),
		mcp.WithString("mode", mcp.Required(), mcp.Enum(settings.Modes...),
			mcp.Description("One of: "+strings.Join(settings.Modes, ", "))),
		mcp.WithBoolean("go", mcp.Description("Open a random note with the new mode right away")),
	), s.setRandomMode)

	s.mcp.AddTool(mcp.NewTool("toggle_cycle",
		mcp.WithDescription("Start or stop opening a random note on a fixed period."),
	), s.toggleCycle)

	s.mcp.AddTool(mcp.NewTool("cycle_status",
		mcp.WithDescription("Report whether the repeating trigger is running and its period."),
	), s.cycleStatus)

	s.mcp.AddTool(mcp.NewTool("build_query",
		mcp.WithDescription("Show the query the stored settings would run, without running it."),
	), s.buildQuery)

	s.mcp.AddTool(mcp.NewTool("resolve_block",
		mcp.WithDescription("Return a block's text with its first ((uuid)) reference expanded recursively."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Block uuid or numeric entity id")),
	), s.resolveBlock)

	s.mcp.AddResource(
		mcp.NewResource(modesURI, "Random Modes",
			mcp.WithResourceDescription("What each random mode selects and which settings it reads."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readModesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) randomNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Trigger(ctx)
	if err != nil {
		return runError(err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) setRandomMode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := req.RequireString("mode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg, res, err := s.svc.SetMode(ctx, mode, req.GetBool("go", false))
	if err != nil && !(errors.Is(err, apperr.ErrEmptyResult) && res != nil) {
		if errors.Is(err, apperr.ErrInvalidMode) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return runError(err), nil
	}
	return jsonResult(struct {
		Settings settings.Settings  `json:"settings"`
		Result   *randomnote.Result `json:"result,omitempty"`
	}{cfg, res}), nil
}

func (s *Server) toggleCycle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.describeCycle(s.cycle.Toggle())), nil
}

func (s *Server) cycleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.describeCycle(s.cycle.State())), nil
}

func (s *Server) describeCycle(st cycle.State) string {
	return fmt.Sprintf("%s (period %s)", st, s.cycle.Period())
}

func (s *Server) buildQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, q, err := s.svc.CurrentQuery(ctx)
	switch {
	case errors.Is(err, apperr.ErrConfiguration):
		return mcp.NewToolResultText(fmt.Sprintf("mode %s: %s", mode.Name(), err)), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ns, ok := mode.(query.NamespaceMode); ok {
		return mcp.NewToolResultText(fmt.Sprintf("mode %s: pages under %q", mode.Name(), ns.Namespace)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("mode %s (%s):\n%s", mode.Name(), q.Lang, q.Text)), nil
}

func (s *Server) resolveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.svc.Resolver().Resolve(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) readModesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      modesURI,
			MIMEType: "text/markdown",
			Text:     ModesGuide,
		},
	}, nil
}

func runError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrEmptyResult) {
		return mcp.NewToolResultError("no candidates matched the current settings")
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}
