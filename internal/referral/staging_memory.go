package referral

import (
	"context"
	"sync"
)

// InMemoryStaging keeps staged codes in process memory. Suitable for a
// single-instance deployment and for tests; the Redis implementation covers
// anything else.
type InMemoryStaging struct {
	mu    sync.Mutex
	codes map[string]string
}

func NewInMemoryStaging() *InMemoryStaging {
	return &InMemoryStaging{codes: make(map[string]string)}
}

func (s *InMemoryStaging) Stage(_ context.Context, sessionID, code string) error {
	if sessionID == "" || code == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[sessionID] = code
	return nil
}

func (s *InMemoryStaging) Consume(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.codes[sessionID]
	delete(s.codes, sessionID)
	return code, nil
}
