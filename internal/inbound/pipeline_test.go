package inbound

import (
	"context"
	"sync"
	"testing"
	"time"

	"zapgate/internal/bus"
	"zapgate/internal/domain"
)

// recordingSink captures relayed payloads.
type recordingSink struct {
	mu       sync.Mutex
	payloads []*domain.RelayPayload
}

func (s *recordingSink) Relay(ctx context.Context, payload *domain.RelayPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
}

func (s *recordingSink) all() []*domain.RelayPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.RelayPayload(nil), s.payloads...)
}

func TestPipeline_RelaysQualifyingEventsInOrder(t *testing.T) {
	queue := bus.New(10, testLogger())
	sink := &recordingSink{}
	p := NewPipeline(queue, newTestClassifier(&fakeClient{}), sink, testLogger())

	go p.Run(context.Background())

	queue.Publish(domain.MessageEvent{Sender: "1@c.us", Type: "chat", Body: "first"})
	queue.Publish(domain.MessageEvent{Sender: "2@c.us", Type: "chat", Body: "second"})
	queue.Close()

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not drain")
	}

	got := sink.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 relays, got %d", len(got))
	}
	if got[0].Body != "first" || got[1].Body != "second" {
		t.Errorf("relay order not preserved: %q, %q", got[0].Body, got[1].Body)
	}
}

func TestPipeline_FilteredEventsNeverReachSink(t *testing.T) {
	queue := bus.New(10, testLogger())
	sink := &recordingSink{}
	p := NewPipeline(queue, newTestClassifier(&fakeClient{}), sink, testLogger())

	go p.Run(context.Background())

	queue.Publish(domain.MessageEvent{Sender: "status@broadcast", Type: "chat", Body: "status"})
	queue.Publish(domain.MessageEvent{Sender: "123@g.us", Type: "chat", Body: "group"})
	queue.Close()

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not drain")
	}

	if n := len(sink.all()); n != 0 {
		t.Fatalf("expected 0 relays for filtered events, got %d", n)
	}
}
