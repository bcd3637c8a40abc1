package sse

import (
	"context"

	"github.com/starford/serendip/internal/cycle"
	"github.com/starford/serendip/internal/graph"
)

var _ graph.Host = (*Host)(nil)

// Host publishes navigation and notifications as events, for UIs that
// follow the stream instead of embedding in the graph app.
type Host struct {
	b *Broker
}

// NewHost returns a graph.Host publishing to b.
func NewHost(b *Broker) *Host { return &Host{b: b} }

func (h *Host) NavigateMain(_ context.Context, target string) error {
	h.b.Publish(Event{Type: TypeNavigateMain, Data: map[string]string{"target": target}})
	return nil
}

func (h *Host) NavigateSide(_ context.Context, uuid string) error {
	h.b.Publish(Event{Type: TypeNavigateSide, Data: map[string]string{"uuid": uuid}})
	return nil
}

func (h *Host) Notify(_ context.Context, message string, severity graph.Severity) error {
	h.b.Publish(Event{Type: TypeNotify, Data: map[string]string{"message": message, "severity": string(severity)}})
	return nil
}

// PublishCycleState reports a scheduler state change. Its signature matches
// cycle.OnChange.
func (h *Host) PublishCycleState(s cycle.State) {
	h.b.Publish(Event{Type: TypeCycleState, Data: map[string]string{"state": string(s)}})
}
