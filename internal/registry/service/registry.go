// Package service exposes the artifact registry operations. It wraps the
// artifact store with error translation, stale-reservation policy, audit
// emission and metrics; the store stays a pure compare-and-set ledger.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"taxbridge/internal/audit"
	"taxbridge/internal/registry/metrics"
	"taxbridge/internal/registry/models"
	"taxbridge/internal/registry/store/artifact"
	"taxbridge/pkg/domain"
	apperrors "taxbridge/pkg/errors"
	"taxbridge/pkg/platform/sentinel"
	"taxbridge/pkg/requestcontext"
)

const defaultPendingTTL = 15 * time.Minute

// Service coordinates access to the artifact ledger.
type Service struct {
	store      artifact.Store
	pendingTTL time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	audit      *audit.Publisher
}

type Option func(*Service)

// WithPendingTTL overrides how long a Pending reservation may sit before a
// new reservation is allowed to reclaim it.
func WithPendingTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.pendingTTL = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With("component", "registry")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAudit(pub *audit.Publisher) Option {
	return func(s *Service) {
		s.audit = pub
	}
}

func New(store artifact.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("artifact store is required")
	}
	s := &Service{
		store:      store,
		pendingTTL: defaultPendingTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TryReserve attempts to take the (event, kind) slot for a producer. Pending
// records older than the pending TTL are reclaimed in the same atomic step.
// Returns a Conflict error when another live record holds the slot.
func (s *Service) TryReserve(ctx context.Context, res artifact.Reservation) (*models.ArtifactRecord, error) {
	reclaimBefore := requestcontext.Now(ctx).Add(-s.pendingTTL)
	record, err := s.store.TryReserve(ctx, res, reclaimBefore)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyReserved) {
			if s.metrics != nil {
				s.metrics.ObserveReservation("lost")
			}
			return nil, apperrors.Wrap(err, apperrors.CodeConflict,
				"a live artifact record already exists for this event and kind")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "reserve artifact slot")
	}
	if s.metrics != nil {
		s.metrics.ObserveReservation("won")
	}
	s.emit(ctx, audit.ActionReserved, res.Event, res.Kind, res.Producer, "")
	s.logger.InfoContext(ctx, "artifact slot reserved",
		"event", res.Event.String(), "kind", string(res.Kind), "producer", string(res.Producer))
	return record, nil
}

// Commit finalizes a Pending record with the external service's reference.
func (s *Service) Commit(ctx context.Context, token models.ReservationToken, externalRef string, amount float64) (*models.ArtifactRecord, error) {
	if externalRef == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "external reference is required to commit")
	}
	record, err := s.store.Commit(ctx, token, externalRef, amount)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidToken) {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidState,
				"reservation is no longer pending")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "commit artifact")
	}
	if s.metrics != nil {
		s.metrics.IncrementCommits()
	}
	s.emit(ctx, audit.ActionCommitted, token.Event, token.Kind, token.Producer, externalRef)
	s.logger.InfoContext(ctx, "artifact committed",
		"event", token.Event.String(), "kind", string(token.Kind), "external_ref", externalRef)
	return record, nil
}

// Fail marks a Pending record as Failed with the producer's error. The slot
// stays blocked until an operator supersedes the failure.
func (s *Service) Fail(ctx context.Context, token models.ReservationToken, cause string) (*models.ArtifactRecord, error) {
	record, err := s.store.Fail(ctx, token, cause)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidToken) {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidState,
				"reservation is no longer pending")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "fail artifact")
	}
	if s.metrics != nil {
		s.metrics.IncrementFailures()
	}
	s.emit(ctx, audit.ActionFailed, token.Event, token.Kind, token.Producer, cause)
	s.logger.WarnContext(ctx, "artifact attempt failed",
		"event", token.Event.String(), "kind", string(token.Kind), "cause", cause)
	return record, nil
}

// Void reverses the live record for the key. Idempotent: voiding an absent or
// already-voided key succeeds silently.
func (s *Service) Void(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) error {
	if err := s.store.Void(ctx, event, kind); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "void artifact")
	}
	if s.metrics != nil {
		s.metrics.IncrementVoids()
	}
	s.emit(ctx, audit.ActionVoided, event, kind, "", "")
	s.logger.InfoContext(ctx, "artifact voided", "event", event.String(), "kind", string(kind))
	return nil
}

// Lookup returns the current record for the key.
func (s *Service) Lookup(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) (*models.ArtifactRecord, error) {
	record, err := s.store.Lookup(ctx, event, kind)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "no artifact record for event and kind")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "lookup artifact")
	}
	return record, nil
}

// History returns every record ever created for the key, oldest first.
func (s *Service) History(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) ([]*models.ArtifactRecord, error) {
	records, err := s.store.History(ctx, event, kind)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "load artifact history")
	}
	return records, nil
}

// Supersede retires the current Failed record so a fresh reservation may be
// taken. Operator-driven repair.
func (s *Service) Supersede(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) error {
	if err := s.store.Supersede(ctx, event, kind); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return apperrors.Wrap(err, apperrors.CodeNotFound, "no artifact record for event and kind")
		case errors.Is(err, sentinel.ErrInvalidState):
			return apperrors.Wrap(err, apperrors.CodeInvalidState, "current record is not failed")
		default:
			return apperrors.Wrap(err, apperrors.CodeInternal, "supersede artifact")
		}
	}
	s.emit(ctx, audit.ActionSuperseded, event, kind, "", "")
	s.logger.InfoContext(ctx, "failed artifact superseded", "event", event.String(), "kind", string(kind))
	return nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, event domain.EventRef, kind domain.ArtifactKind, producer domain.ProducerName, detail string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    action,
		Ref:       event,
		Kind:      kind,
		Producer:  producer,
		Detail:    detail,
	})
}
