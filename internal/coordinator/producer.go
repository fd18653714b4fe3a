package coordinator

//go:generate mockgen -source=producer.go -destination=mocks/mocks.go -package=mocks Producer

import (
	"context"

	entitymodels "taxbridge/internal/entity/models"
	eventmodels "taxbridge/internal/event/models"
	"taxbridge/pkg/domain"
)

// CreateResult is what a producer hands back after the external service
// confirmed the artifact.
type CreateResult struct {
	// ExternalRef is the identifier assigned by the external service.
	ExternalRef string
	// Amount is the monetary total the external service registered. The
	// reconciliation engine compares this against the event amount.
	Amount float64
}

// Producer is one downstream integration capable of creating fiscal
// artifacts. Implementations call external services; the coordinator owns
// the reservation lifecycle around those calls.
type Producer interface {
	// Name identifies the producer in records, config and logs.
	Name() domain.ProducerName

	// Kind is the artifact kind this producer emits.
	Kind() domain.ArtifactKind

	// IsEligible decides whether this producer applies to the event given
	// the resolved organization. Pure; no external calls.
	IsEligible(event *eventmodels.BusinessEvent, org *entitymodels.Organization) bool

	// CreateArtifact calls the external service. It must be safe to retry
	// after a failure that was recorded via the registry; the coordinator
	// never invokes it while holding no reservation.
	CreateArtifact(ctx context.Context, event *eventmodels.BusinessEvent, org *entitymodels.Organization) (*CreateResult, error)

	// ReverseArtifact tells the external service to void a previously
	// created artifact. Must be idempotent.
	ReverseArtifact(ctx context.Context, event *eventmodels.BusinessEvent, externalRef string) error
}
