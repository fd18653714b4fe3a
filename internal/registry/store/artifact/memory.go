package artifact

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"taxbridge/internal/registry/models"
	"taxbridge/pkg/domain"
	"taxbridge/pkg/platform/sentinel"
	"taxbridge/pkg/requestcontext"
)

type recordKey struct {
	event domain.EventRef
	kind  domain.ArtifactKind
}

// InMemoryStore keeps the artifact ledger under a single mutex, which gives
// TryReserve its linearizable compare-and-set for free.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[recordKey][]*models.ArtifactRecord
}

// NewInMemoryStore creates an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[recordKey][]*models.ArtifactRecord)}
}

func (s *InMemoryStore) TryReserve(ctx context.Context, res Reservation, reclaimBefore time.Time) (*models.ArtifactRecord, error) {
	now := requestcontext.Now(ctx)
	key := recordKey{event: res.Event, kind: res.Kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records[key] {
		if !rec.Status.IsLive() {
			continue
		}
		if rec.Status == models.StatusPending && rec.CreatedAt.Before(reclaimBefore) {
			// Abandoned reservation; the reclaimer wins.
			rec.Status = models.StatusSuperseded
			rec.LastError = "reservation abandoned"
			rec.UpdatedAt = now
			continue
		}
		return nil, sentinel.ErrAlreadyReserved
	}

	rec := &models.ArtifactRecord{
		ID:           uuid.New(),
		Event:        res.Event,
		Kind:         res.Kind,
		Producer:     res.Producer,
		Organization: res.Organization,
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.records[key] = append(s.records[key], rec)
	return rec.Clone(), nil
}

func (s *InMemoryStore) Commit(ctx context.Context, token models.ReservationToken, externalRef string, amount float64) (*models.ArtifactRecord, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findByID(token.Event, token.Kind, token.RecordID)
	if rec == nil || rec.Status != models.StatusPending {
		return nil, sentinel.ErrInvalidToken
	}
	rec.Status = models.StatusCommitted
	rec.ExternalRef = externalRef
	rec.Amount = amount
	rec.UpdatedAt = now
	return rec.Clone(), nil
}

func (s *InMemoryStore) Fail(ctx context.Context, token models.ReservationToken, cause string) (*models.ArtifactRecord, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findByID(token.Event, token.Kind, token.RecordID)
	if rec == nil || rec.Status != models.StatusPending {
		return nil, sentinel.ErrInvalidToken
	}
	rec.Status = models.StatusFailed
	rec.LastError = cause
	rec.UpdatedAt = now
	return rec.Clone(), nil
}

func (s *InMemoryStore) Void(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) error {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records[recordKey{event: event, kind: kind}] {
		if rec.Status.IsLive() {
			rec.Status = models.StatusVoided
			rec.UpdatedAt = now
		}
	}
	// Absent or already-voided: no-op success.
	return nil
}

func (s *InMemoryStore) Lookup(_ context.Context, event domain.EventRef, kind domain.ArtifactKind) (*models.ArtifactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[recordKey{event: event, kind: kind}]
	if len(recs) == 0 {
		return nil, sentinel.ErrNotFound
	}
	for _, rec := range recs {
		if rec.Status.IsLive() {
			return rec.Clone(), nil
		}
	}
	return recs[len(recs)-1].Clone(), nil
}

func (s *InMemoryStore) History(_ context.Context, event domain.EventRef, kind domain.ArtifactKind) ([]*models.ArtifactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[recordKey{event: event, kind: kind}]
	out := make([]*models.ArtifactRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *InMemoryStore) Supersede(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) error {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[recordKey{event: event, kind: kind}]
	if len(recs) == 0 {
		return sentinel.ErrNotFound
	}
	current := recs[len(recs)-1]
	if current.Status != models.StatusFailed {
		return sentinel.ErrInvalidState
	}
	current.Status = models.StatusSuperseded
	current.UpdatedAt = now
	return nil
}

// findByID must be called while holding s.mu.
func (s *InMemoryStore) findByID(event domain.EventRef, kind domain.ArtifactKind, id uuid.UUID) *models.ArtifactRecord {
	for _, rec := range s.records[recordKey{event: event, kind: kind}] {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}
