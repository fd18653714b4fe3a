// Package service implements the entity resolver: one canonical Organization
// per business event, or a hard failure when identity sources disagree.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"taxbridge/internal/entity/metrics"
	"taxbridge/internal/entity/models"
	"taxbridge/internal/entity/store/organization"
	"taxbridge/pkg/domain"
	"taxbridge/pkg/errors"
)

// Resolver resolves identity fragments into a canonical Organization and
// persists newly learned identifiers write-through. It performs no network
// calls; callers supply already-fetched fragments.
type Resolver struct {
	store   organization.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func New(store organization.Store, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("organization store is required")
	}
	r := &Resolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve produces the canonical Organization for the context's event.
//
// Resolution order:
//  1. all non-empty registry number fragments must agree; disagreement is an
//     IdentityConflict (CodeConflict), never auto-resolved
//  2. the organization is loaded or created keyed by that registry number
//  3. auxiliary identifiers absent on the stored record are merged in,
//     write-through
//
// Errors: CodeConflict on disagreeing registry numbers, CodeInvalidInput when
// no fragment carries a registry number, CodeInternal on store failure.
func (r *Resolver) Resolve(ctx context.Context, rc models.ResolutionContext) (*models.Organization, error) {
	regNo, err := r.registryNumberFor(rc)
	if err != nil {
		return nil, err
	}

	incoming := &models.Organization{
		RegistryNumber: regNo,
		Auxiliary:      make(map[domain.ProducerName]string),
	}
	for _, frag := range rc.Fragments {
		incoming.MergeFrom(&models.Organization{
			RegistryNumber: regNo,
			TaxpayerID:     frag.TaxpayerID,
			DisplayName:    frag.DisplayName,
			Auxiliary:      frag.Auxiliary,
		})
	}

	org, err := r.store.Merge(ctx, incoming)
	if err != nil {
		r.observe("error")
		return nil, errors.Wrap(err, errors.CodeInternal, "persist organization enrichment")
	}

	r.observe("resolved")
	if r.metrics != nil {
		r.metrics.IncrementEnrichments()
	}
	if r.logger != nil {
		r.logger.DebugContext(ctx, "entity resolved",
			"event", rc.Event.String(),
			"registry_number", org.RegistryNumber.String(),
		)
	}
	return org, nil
}

// registryNumberFor extracts the single agreed registry number from the
// fragments.
func (r *Resolver) registryNumberFor(rc models.ResolutionContext) (domain.RegistryNumber, error) {
	var (
		regNo  domain.RegistryNumber
		source models.FragmentSource
	)
	for _, frag := range rc.Fragments {
		if frag.RegistryNumber.IsNil() {
			continue
		}
		if regNo.IsNil() {
			regNo = frag.RegistryNumber
			source = frag.Source
			continue
		}
		if frag.RegistryNumber != regNo {
			r.observe("conflict")
			if r.metrics != nil {
				r.metrics.IncrementConflicts()
			}
			if r.logger != nil {
				r.logger.Warn("identity conflict",
					"event", rc.Event.String(),
					"registry_number_a", regNo.String(),
					"source_a", source.String(),
					"registry_number_b", frag.RegistryNumber.String(),
					"source_b", frag.Source.String(),
				)
			}
			// Upstream data entry or configuration fault; an operator has to
			// decide which source is right.
			return "", errors.Newf(errors.CodeConflict,
				"identity conflict for %s: %s (%s) vs %s (%s)",
				rc.Event, regNo, source, frag.RegistryNumber, frag.Source)
		}
	}
	if regNo.IsNil() {
		r.observe("unresolvable")
		return "", errors.Newf(errors.CodeInvalidInput,
			"no fragment carries a registry number for %s", rc.Event)
	}
	return regNo, nil
}

func (r *Resolver) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.ObserveResolution(outcome)
	}
}
