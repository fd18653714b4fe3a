// Package coordinator drives artifact creation. Given a business event and an
// artifact kind it resolves the organization, selects the highest-priority
// eligible producer and runs the reserve / external call / commit cycle
// against the registry. The registry's compare-and-set is what makes
// concurrent attempts safe; the coordinator turns its verdicts into outcomes.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	entitymodels "taxbridge/internal/entity/models"
	eventmodels "taxbridge/internal/event/models"
	eventstore "taxbridge/internal/event/store"
	"taxbridge/internal/coordinator/metrics"
	"taxbridge/internal/idempotency"
	regmodels "taxbridge/internal/registry/models"
	"taxbridge/internal/registry/store/artifact"
	"taxbridge/pkg/domain"
	apperrors "taxbridge/pkg/errors"
	"taxbridge/pkg/requestcontext"
)

// EntityResolver resolves identity fragments into a canonical organization.
type EntityResolver interface {
	Resolve(ctx context.Context, rc entitymodels.ResolutionContext) (*entitymodels.Organization, error)
}

// ArtifactRegistry is the registry surface the coordinator drives.
type ArtifactRegistry interface {
	TryReserve(ctx context.Context, res artifact.Reservation) (*regmodels.ArtifactRecord, error)
	Commit(ctx context.Context, token regmodels.ReservationToken, externalRef string, amount float64) (*regmodels.ArtifactRecord, error)
	Fail(ctx context.Context, token regmodels.ReservationToken, cause string) (*regmodels.ArtifactRecord, error)
	Void(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) error
	Lookup(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) (*regmodels.ArtifactRecord, error)
	Supersede(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) error
}

// FragmentProvider contributes identity fragments for an event beyond the
// ones embedded on the event itself.
type FragmentProvider interface {
	Fragments(ctx context.Context, event *eventmodels.BusinessEvent) ([]entitymodels.IdentityFragment, error)
}

// FragmentProviderFunc adapts a function to the FragmentProvider interface.
type FragmentProviderFunc func(ctx context.Context, event *eventmodels.BusinessEvent) ([]entitymodels.IdentityFragment, error)

func (f FragmentProviderFunc) Fragments(ctx context.Context, event *eventmodels.BusinessEvent) ([]entitymodels.IdentityFragment, error) {
	return f(ctx, event)
}

// Coordinator orchestrates one artifact attempt at a time per call. It holds
// no state of its own; all coordination happens through the registry.
type Coordinator struct {
	events    eventstore.EventStore
	resolver  EntityResolver
	registry  ArtifactRegistry
	producers []Producer

	cache     *idempotency.Cache
	annotator eventstore.Annotator
	providers []FragmentProvider
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Coordinator)

// WithIdempotencyCache short-circuits repeat attempts for already-decided
// keys. Advisory; the registry stays the source of truth.
func WithIdempotencyCache(cache *idempotency.Cache) Option {
	return func(c *Coordinator) {
		c.cache = cache
	}
}

// WithAnnotator writes artifact outcomes back onto source records.
func WithAnnotator(a eventstore.Annotator) Option {
	return func(c *Coordinator) {
		c.annotator = a
	}
}

// WithFragmentProviders adds identity sources consulted before resolution,
// in addition to the event's own identifiers.
func WithFragmentProviders(providers ...FragmentProvider) Option {
	return func(c *Coordinator) {
		c.providers = append(c.providers, providers...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger.With("component", "coordinator")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// New creates a coordinator. The producer slice is priority-ordered: for each
// kind, the first eligible producer wins.
func New(events eventstore.EventStore, resolver EntityResolver, registry ArtifactRegistry, producers []Producer, opts ...Option) (*Coordinator, error) {
	if events == nil {
		return nil, errors.New("event store is required")
	}
	if resolver == nil {
		return nil, errors.New("entity resolver is required")
	}
	if registry == nil {
		return nil, errors.New("artifact registry is required")
	}
	c := &Coordinator{
		events:    events,
		resolver:  resolver,
		registry:  registry,
		producers: producers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Attempt ensures the (event, kind) slot converges toward a committed
// artifact. Safe to call any number of times from any number of callers.
func (c *Coordinator) Attempt(ctx context.Context, ref domain.EventRef, kind domain.ArtifactKind) (*Outcome, error) {
	if cached, err := c.cache.Get(ctx, ref, kind); err == nil && cached != nil && cached.Status == string(regmodels.StatusCommitted) {
		return c.observe(&Outcome{
			Status:      OutcomeAlreadySatisfied,
			Producer:    domain.ProducerName(cached.Producer),
			ExternalRef: cached.ExternalRef,
		}), nil
	}

	event, err := c.events.Find(ctx, ref)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "load business event")
	}

	if event.IsVoided() {
		if err := c.registry.Void(ctx, ref, kind); err != nil {
			return nil, err
		}
		return c.observe(&Outcome{Status: OutcomeEventVoided}), nil
	}
	if !event.IsCommitted() {
		return nil, apperrors.Newf(apperrors.CodeInvalidState,
			"event %s is not committed; artifacts attach to finalized events only", ref)
	}

	// Fast path on the current record before doing any resolution work.
	if current, err := c.registry.Lookup(ctx, ref, kind); err == nil {
		switch current.Status {
		case regmodels.StatusCommitted:
			c.cacheOutcome(ctx, ref, kind, current)
			return c.observe(&Outcome{
				Status:      OutcomeAlreadySatisfied,
				Producer:    current.Producer,
				ExternalRef: current.ExternalRef,
				Record:      current,
			}), nil
		case regmodels.StatusFailed:
			return c.observe(&Outcome{
				Status: OutcomeBlockedByFailure,
				Reason: current.LastError,
				Record: current,
			}), nil
		}
	} else if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		return nil, err
	}

	org, err := c.resolveOrganization(ctx, event)
	if err != nil {
		return nil, err
	}

	producer := c.selectProducer(event, org, kind)
	if producer == nil {
		return c.observe(&Outcome{Status: OutcomeNoEligibleProducer}), nil
	}

	record, err := c.registry.TryReserve(ctx, artifact.Reservation{
		Event:        ref,
		Kind:         kind,
		Producer:     producer.Name(),
		Organization: org.RegistryNumber,
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			return c.concurrentOutcome(ctx, ref, kind)
		}
		return nil, err
	}

	return c.runProducer(ctx, event, org, producer, record)
}

// Cancel reverses and voids the artifact for the key. Idempotent: cancelling
// an absent or already-voided key succeeds.
func (c *Coordinator) Cancel(ctx context.Context, ref domain.EventRef, kind domain.ArtifactKind) (*Outcome, error) {
	current, err := c.registry.Lookup(ctx, ref, kind)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return c.observe(&Outcome{Status: OutcomeEventVoided}), nil
		}
		return nil, err
	}

	// A committed artifact is reversed externally before the record is
	// voided; if the reversal fails the record stays live so a retry can
	// finish the job.
	if current.Status == regmodels.StatusCommitted && current.ExternalRef != "" {
		producer := c.producerByName(current.Producer)
		if producer != nil {
			event, err := c.events.Find(ctx, ref)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "load business event")
			}
			if err := producer.ReverseArtifact(ctx, event, current.ExternalRef); err != nil {
				return nil, apperrors.Wrap(err, apperrors.CodeUnavailable,
					"reverse artifact with external service")
			}
		} else {
			c.logger.WarnContext(ctx, "no producer registered for committed artifact, voiding without reversal",
				"event", ref.String(), "producer", current.Producer.String())
		}
	}

	if err := c.registry.Void(ctx, ref, kind); err != nil {
		return nil, err
	}
	_ = c.cache.Invalidate(ctx, ref, kind)
	c.annotate(ctx, ref, kind, "voided", "")
	return c.observe(&Outcome{Status: OutcomeEventVoided, Producer: current.Producer, ExternalRef: current.ExternalRef}), nil
}

// Repair retires a recorded failure and immediately re-attempts. Operator
// entry point for blocked slots.
func (c *Coordinator) Repair(ctx context.Context, ref domain.EventRef, kind domain.ArtifactKind) (*Outcome, error) {
	if err := c.registry.Supersede(ctx, ref, kind); err != nil {
		return nil, err
	}
	_ = c.cache.Invalidate(ctx, ref, kind)
	return c.Attempt(ctx, ref, kind)
}

func (c *Coordinator) resolveOrganization(ctx context.Context, event *eventmodels.BusinessEvent) (*entitymodels.Organization, error) {
	fragments := []entitymodels.IdentityFragment{{
		Source:         entitymodels.SourceEvent,
		RegistryNumber: event.Organization,
		TaxpayerID:     event.Counterparty,
	}}
	for _, provider := range c.providers {
		extra, err := provider.Fragments(ctx, event)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "gather identity fragments")
		}
		fragments = append(fragments, extra...)
	}
	return c.resolver.Resolve(ctx, entitymodels.ResolutionContext{
		Event:     event.Ref,
		Fragments: fragments,
	})
}

func (c *Coordinator) selectProducer(event *eventmodels.BusinessEvent, org *entitymodels.Organization, kind domain.ArtifactKind) Producer {
	for _, p := range c.producers {
		if p.Kind() != kind {
			continue
		}
		if p.IsEligible(event, org) {
			return p
		}
	}
	return nil
}

func (c *Coordinator) producerByName(name domain.ProducerName) Producer {
	for _, p := range c.producers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

func (c *Coordinator) runProducer(ctx context.Context, event *eventmodels.BusinessEvent, org *entitymodels.Organization, producer Producer, record *regmodels.ArtifactRecord) (*Outcome, error) {
	token := record.Token()

	result, err := producer.CreateArtifact(ctx, event, org)
	if err != nil {
		cause := err.Error()
		if _, failErr := c.registry.Fail(ctx, token, cause); failErr != nil {
			// The reservation was voided or reclaimed while the call was
			// failing; nothing external was created, so there is nothing to
			// compensate.
			c.logger.WarnContext(ctx, "could not record producer failure",
				"event", event.Ref.String(), "error", failErr)
		}
		c.logger.ErrorContext(ctx, "producer call failed",
			"event", event.Ref.String(), "producer", producer.Name().String(), "error", err)
		return c.observe(&Outcome{
			Status:   OutcomeFailed,
			Producer: producer.Name(),
			Reason:   cause,
		}), nil
	}

	committed, err := c.registry.Commit(ctx, token, result.ExternalRef, result.Amount)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeInvalidState) {
			// The event was voided while the external call was in flight.
			// The artifact exists downstream but its slot is gone: reverse it.
			if revErr := producer.ReverseArtifact(ctx, event, result.ExternalRef); revErr != nil {
				return nil, apperrors.Wrap(revErr, apperrors.CodeUnavailable,
					fmt.Sprintf("artifact %s is orphaned: commit lost and reversal failed", result.ExternalRef))
			}
			if c.metrics != nil {
				c.metrics.IncrementCompensations()
			}
			c.logger.WarnContext(ctx, "compensated mid-flight void",
				"event", event.Ref.String(), "external_ref", result.ExternalRef)
			return c.observe(&Outcome{
				Status:      OutcomeCompensated,
				Producer:    producer.Name(),
				ExternalRef: result.ExternalRef,
			}), nil
		}
		return nil, err
	}

	c.cacheOutcome(ctx, committed.Event, committed.Kind, committed)
	c.annotate(ctx, committed.Event, committed.Kind, "committed", committed.ExternalRef)
	return c.observe(&Outcome{
		Status:      OutcomeCompleted,
		Producer:    producer.Name(),
		ExternalRef: committed.ExternalRef,
		Record:      committed,
	}), nil
}

// concurrentOutcome classifies a lost reservation race by re-reading.
func (c *Coordinator) concurrentOutcome(ctx context.Context, eventRef domain.EventRef, kind domain.ArtifactKind) (*Outcome, error) {
	current, err := c.registry.Lookup(ctx, eventRef, kind)
	if err != nil {
		return c.observe(&Outcome{Status: OutcomeInProgress}), nil
	}
	if current.Status == regmodels.StatusCommitted {
		c.cacheOutcome(ctx, eventRef, kind, current)
		return c.observe(&Outcome{
			Status:      OutcomeAlreadySatisfied,
			Producer:    current.Producer,
			ExternalRef: current.ExternalRef,
			Record:      current,
		}), nil
	}
	return c.observe(&Outcome{Status: OutcomeInProgress, Producer: current.Producer}), nil
}

func (c *Coordinator) cacheOutcome(ctx context.Context, eventRef domain.EventRef, kind domain.ArtifactKind, record *regmodels.ArtifactRecord) {
	_ = c.cache.Set(ctx, eventRef, kind, idempotency.CachedOutcome{
		Status:      string(record.Status),
		Producer:    record.Producer.String(),
		ExternalRef: record.ExternalRef,
		DecidedAt:   requestcontext.Now(ctx),
	})
}

func (c *Coordinator) annotate(ctx context.Context, eventRef domain.EventRef, kind domain.ArtifactKind, status, externalRef string) {
	if c.annotator == nil {
		return
	}
	key := "taxbridge_" + string(kind) + "_status"
	if err := c.annotator.Annotate(ctx, eventRef, key, status); err != nil {
		c.logger.WarnContext(ctx, "failed to annotate source record",
			"event", eventRef.String(), "error", err)
		return
	}
	if externalRef != "" {
		refKey := "taxbridge_" + string(kind) + "_ref"
		if err := c.annotator.Annotate(ctx, eventRef, refKey, externalRef); err != nil {
			c.logger.WarnContext(ctx, "failed to annotate source record",
				"event", eventRef.String(), "error", err)
		}
	}
}

func (c *Coordinator) observe(outcome *Outcome) *Outcome {
	if c.metrics != nil {
		c.metrics.ObserveAttempt(string(outcome.Status))
	}
	return outcome
}
