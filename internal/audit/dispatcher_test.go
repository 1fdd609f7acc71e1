package audit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type collectingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectingSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, nil)
	if d != nil {
		t.Fatal("expected a nil dispatcher when disabled")
	}

	// Every method must be safe on the nil dispatcher.
	d.Emit(context.Background(), Event{EventType: "x"})
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops")
	}
	d.Close()
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := &collectingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	// Close drains buffered events before returning.
	d.Close()

	if got := sink.count(); got != 10 {
		t.Fatalf("expected 10 delivered events, got %d", got)
	}
	if d.Dropped() != 0 {
		t.Fatal("expected no drops")
	}

	// Emitting after close is a no-op.
	d.Emit(context.Background(), Event{EventType: "late"})
	if got := sink.count(); got != 10 {
		t.Fatalf("expected no late delivery, got %d", got)
	}
}

// blockingSink holds every Emit until released, so the dispatcher buffer
// fills deterministically.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the worker, second fills the buffer; wait for
	// the worker to pick the first one up so the state is stable.
	d.Emit(context.Background(), Event{EventType: "a"})
	deadline := time.After(time.Second)
	for len(d.ch) != 0 {
		select {
		case <-deadline:
			t.Fatal("worker never picked up the first event")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	d.Emit(context.Background(), Event{EventType: "b"})
	d.Emit(context.Background(), Event{EventType: "c"})

	if d.Dropped() == 0 {
		t.Fatal("expected at least one dropped event")
	}

	close(sink.release)
	d.Close()
}

func TestNewChannelSink(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "login_success", UserID: "u1"})
	d.Close()

	select {
	case event := <-sink.Events():
		if event.EventType != "login_success" || event.UserID != "u1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an event on the channel")
	}
}
