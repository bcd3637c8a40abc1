package sse

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/starford/serendip/internal/cycle"
	"github.com/starford/serendip/internal/graph"
)

func drain(ch chan []byte, n int, timeout time.Duration) []string {
	var out []string
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		case <-deadline:
			return out
		}
	}
	return out
}

func TestHost_PublishesEvents(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	h := NewHost(b)
	ctx := context.Background()
	_ = h.NavigateMain(ctx, "reading list")
	_ = h.NavigateSide(ctx, "6650f0a1-0000-4000-8000-000000000001")
	_ = h.Notify(ctx, "Random tags are required.", graph.SeverityWarning)
	h.PublishCycleState(cycle.Running)

	msgs := drain(ch, 4, time.Second)
	if len(msgs) != 4 {
		t.Fatalf("got %d events, want 4", len(msgs))
	}
	wants := []string{
		`event: navigate.main` + "\n" + `data: {"target":"reading list"}`,
		`event: navigate.side`,
		`"severity":"warning"`,
		`data: {"state":"running"}`,
	}
	for i, want := range wants {
		if !strings.Contains(msgs[i], want) {
			t.Errorf("event %d = %q, want it to contain %q", i, msgs[i], want)
		}
	}
}
