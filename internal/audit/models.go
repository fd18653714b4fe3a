// Package audit captures an append-only trail of registry mutations. Every
// reservation, commit, failure, void and supersede is recorded so operators
// can replay how an artifact slot reached its current state.
package audit

import (
	"context"
	"time"

	"taxbridge/pkg/domain"
)

// Action identifies what happened to an artifact slot.
type Action string

const (
	ActionReserved   Action = "artifact_reserved"
	ActionCommitted  Action = "artifact_committed"
	ActionFailed     Action = "artifact_failed"
	ActionVoided     Action = "artifact_voided"
	ActionSuperseded Action = "artifact_superseded"
)

// Event is one audit trail entry.
type Event struct {
	Timestamp time.Time           `json:"timestamp"`
	Action    Action              `json:"action"`
	Ref       domain.EventRef     `json:"event"`
	Kind      domain.ArtifactKind `json:"kind"`
	Producer  domain.ProducerName `json:"producer,omitempty"`
	Detail    string              `json:"detail,omitempty"`
}

// Store is the append-only persistence surface for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRef(ctx context.Context, ref domain.EventRef) ([]Event, error)
}
