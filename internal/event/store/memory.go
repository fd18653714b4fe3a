package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"taxbridge/internal/event/models"
	"taxbridge/pkg/domain"
	"taxbridge/pkg/platform/sentinel"
)

// InMemoryEventStore mirrors business events in memory. Used in development
// and as the test double for the external document store.
type InMemoryEventStore struct {
	mu          sync.RWMutex
	events      map[domain.EventRef]*models.BusinessEvent
	annotations map[domain.EventRef]map[string]string
}

// NewInMemoryEventStore creates an empty in-memory event mirror.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events:      make(map[domain.EventRef]*models.BusinessEvent),
		annotations: make(map[domain.EventRef]map[string]string),
	}
}

// Put upserts an event record; the source system drives lifecycle changes.
func (s *InMemoryEventStore) Put(event *models.BusinessEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.events[event.Ref] = &cp
}

// SetState transitions an existing event's lifecycle state.
func (s *InMemoryEventStore) SetState(ref domain.EventRef, state models.LifecycleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[ref]
	if !ok {
		return sentinel.ErrNotFound
	}
	ev.State = state
	return nil
}

func (s *InMemoryEventStore) Find(_ context.Context, ref domain.EventRef) (*models.BusinessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[ref]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (s *InMemoryEventStore) ListCommitted(_ context.Context, from, to time.Time) ([]*models.BusinessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.BusinessEvent
	for _, ev := range s.events {
		if ev.State != models.StateCommitted {
			continue
		}
		if ev.Timestamp.Before(from) || !ev.Timestamp.Before(to) {
			continue
		}
		cp := *ev
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *InMemoryEventStore) Annotate(_ context.Context, ref domain.EventRef, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ref]; !ok {
		return sentinel.ErrNotFound
	}
	ann := s.annotations[ref]
	if ann == nil {
		ann = make(map[string]string)
		s.annotations[ref] = ann
	}
	ann[key] = value
	return nil
}

// Annotations returns a copy of the annotations for a ref (test helper).
func (s *InMemoryEventStore) Annotations(ref domain.EventRef) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.annotations[ref]))
	for k, v := range s.annotations[ref] {
		out[k] = v
	}
	return out
}
