package audit

import (
	"context"
	"sync"

	"taxbridge/pkg/domain"
)

// InMemoryStore keeps the audit trail in memory. Development and tests only;
// production deployments point the publisher at the postgres store.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemoryStore creates an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByRef(_ context.Context, ref domain.EventRef) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Ref == ref {
			out = append(out, ev)
		}
	}
	return out, nil
}
