package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// collect reads whatever is queued on ch after a short settle period.
func collect(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d, want 0", n)
	}
	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after unsubscribe, want 0", n)
	}
}

func TestPublishNumbersEvents(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeNavigateMain, Data: map[string]string{"target": "reading"}})
	b.Publish(Event{Type: TypeNotify, Data: map[string]string{"message": "hi", "severity": "info"}})

	msgs := collect(ch)
	if len(msgs) != 2 {
		t.Fatalf("got %d events, want 2: %q", len(msgs), msgs)
	}
	if want := "id: 1\nevent: navigate.main\ndata: {\"target\":\"reading\"}\n\n"; msgs[0] != want {
		t.Errorf("first = %q, want %q", msgs[0], want)
	}
	if !strings.HasPrefix(msgs[1], "id: 2\nevent: notify\n") {
		t.Errorf("second = %q", msgs[1])
	}
}

func TestPublishSkipsUnencodableData(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeNotify, Data: make(chan int)})
	b.Publish(Event{Type: TypeNotify, Data: map[string]string{"message": "ok"}})

	msgs := collect(ch)
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "id: 1\n") {
		t.Errorf("msgs = %q, want one event numbered 1", msgs)
	}
}

func TestPublishPageChange_GraphThrottle(t *testing.T) {
	b := NewBroker(WithGraphThrottle(500 * time.Millisecond))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishPageChange("created", "pages/a.md")
	b.PublishPageChange("updated", "pages/b.md")
	b.PublishPageChange("moved", "pages/c.md")

	var page, graph int
	for _, s := range collect(ch) {
		if strings.Contains(s, "event: graph.updated") {
			graph++
		} else {
			page++
		}
	}
	if page != 2 {
		t.Errorf("page events = %d, want 2", page)
	}
	if graph != 1 {
		t.Errorf("graph events = %d, want 1 (throttled)", graph)
	}
}

func TestCycleStateReplayedToLateSubscribers(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	b.Publish(Event{Type: TypeCycleState, Data: map[string]string{"state": "running"}})
	b.Publish(Event{Type: TypeNavigateMain, Data: map[string]string{"target": "x"}})
	b.Publish(Event{Type: TypeCycleState, Data: map[string]string{"state": "idle"}})

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	msgs := collect(ch)
	if len(msgs) != 1 {
		t.Fatalf("replayed %d events, want 1: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "event: cycle.state") || !strings.Contains(msgs[0], `"state":"idle"`) {
		t.Errorf("replayed = %q, want latest cycle state", msgs[0])
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(WithHeartbeat(0))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1 from handler", n)
	}

	b.Publish(Event{Type: TypeNavigateMain, Data: map[string]string{"target": "x"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: navigate.main") {
		t.Errorf("handler output missing event: %q", body)
	}
	if strings.Contains(body, "keep-alive") {
		t.Errorf("heartbeat written while disabled: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d after disconnect, want 0", n)
	}
}

func TestSSEHandlerHeartbeat(t *testing.T) {
	b := NewBroker(WithHeartbeat(20 * time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)

	if n := strings.Count(w.Body.String(), ": keep-alive\n\n"); n < 2 {
		t.Errorf("heartbeats = %d, want at least 2", n)
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+6; i++ {
		b.Publish(Event{Type: TypeNotify, Data: map[string]int{"i": i}})
	}
	if got := len(collect(ch)); got != clientBuffer {
		t.Errorf("delivered %d, want buffer size %d", got, clientBuffer)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after close, want 0", n)
	}

	// No-ops after close.
	b.Publish(Event{Type: TypeNotify, Data: map[string]string{"message": "x"}})
	b.PublishPageChange("updated", "pages/x.md")
	b.Close()
	if ch := b.Subscribe(); ch == nil {
		t.Fatal("Subscribe after close returned nil")
	} else if _, ok := <-ch; ok {
		t.Fatal("Subscribe after close should return a closed channel")
	}
}
