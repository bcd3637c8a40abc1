// Package console is a graph.Host that prints navigation and notifications
// as colored lines, for one-shot CLI runs.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/starford/serendip/internal/graph"
)

var _ graph.Host = (*Host)(nil)

// Host writes to an io.Writer. It is safe for concurrent use.
type Host struct {
	mu   sync.Mutex
	w    io.Writer
	main *color.Color
	side *color.Color
	sev  map[graph.Severity]*color.Color
}

// New returns a Host writing to w. When plain is set no escape codes are written.
func New(w io.Writer, plain bool) *Host {
	h := &Host{
		w:    w,
		main: color.New(color.FgCyan, color.Bold),
		side: color.New(color.FgBlue),
		sev: map[graph.Severity]*color.Color{
			graph.SeverityInfo:    color.New(color.FgWhite),
			graph.SeveritySuccess: color.New(color.FgGreen),
			graph.SeverityWarning: color.New(color.FgYellow),
			graph.SeverityError:   color.New(color.FgRed, color.Bold),
		},
	}
	if plain {
		h.main.DisableColor()
		h.side.DisableColor()
		for _, c := range h.sev {
			c.DisableColor()
		}
	} else {
		h.main.EnableColor()
		h.side.EnableColor()
		for _, c := range h.sev {
			c.EnableColor()
		}
	}
	return h
}

func (h *Host) NavigateMain(_ context.Context, target string) error {
	return h.line(h.main, "→ %s", target)
}

func (h *Host) NavigateSide(_ context.Context, uuid string) error {
	return h.line(h.side, "  ↳ %s", uuid)
}

func (h *Host) Notify(_ context.Context, message string, severity graph.Severity) error {
	c, ok := h.sev[severity]
	if !ok {
		c = h.sev[graph.SeverityInfo]
	}
	return h.line(c, "[%s] %s", severity, message)
}

// Content prints resolved block text under the main target.
func (h *Host) Content(text string) error {
	if text == "" {
		return nil
	}
	return h.line(h.sev[graph.SeverityInfo], "  %s", text)
}

func (h *Host) line(c *color.Color, format string, args ...any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := c.Fprintf(h.w, format, args...); err != nil {
		return err
	}
	_, err := fmt.Fprintln(h.w)
	return err
}
