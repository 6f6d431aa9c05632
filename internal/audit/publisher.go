package audit

import (
	"context"
	"sync"

	"canvass/pkg/requestcontext"
)

// Publisher captures structured audit events. Implementations must be safe
// for concurrent use; Emit must never block domain logic on sink health.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Enrich fills event fields that come from the request context and defaults
// the timestamp. Sinks call this so emit sites stay terse.
func Enrich(ctx context.Context, event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	return event
}

// MemorySink is an in-process Publisher used in development wiring and
// tests. It records events in order of arrival.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(ctx context.Context, event Event) error {
	event = Enrich(ctx, event)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
