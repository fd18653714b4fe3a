package organization

import (
	"context"
	"sort"
	"sync"

	"taxbridge/internal/entity/models"
	"taxbridge/pkg/domain"
	"taxbridge/pkg/platform/sentinel"
	"taxbridge/pkg/requestcontext"
)

// InMemoryStore keeps organizations in a mutex-guarded map.
type InMemoryStore struct {
	mu   sync.RWMutex
	orgs map[domain.RegistryNumber]*models.Organization
}

// NewInMemoryStore creates an empty in-memory organization store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{orgs: make(map[domain.RegistryNumber]*models.Organization)}
}

func (s *InMemoryStore) Find(_ context.Context, regNo domain.RegistryNumber) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[regNo]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return org.Clone(), nil
}

func (s *InMemoryStore) Merge(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	if org.RegistryNumber.IsNil() {
		return nil, sentinel.ErrInvalidState
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orgs[org.RegistryNumber]
	if !ok {
		stored := org.Clone()
		if stored.Auxiliary == nil {
			stored.Auxiliary = make(map[domain.ProducerName]string)
		}
		stored.CreatedAt = now
		stored.UpdatedAt = now
		s.orgs[org.RegistryNumber] = stored
		return stored.Clone(), nil
	}

	if existing.MergeFrom(org) {
		existing.UpdatedAt = now
	}
	return existing.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		out = append(out, org.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegistryNumber < out[j].RegistryNumber
	})
	return out, nil
}
