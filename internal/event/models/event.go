package models

import (
	"time"

	"taxbridge/pkg/domain"
)

// LifecycleState tracks the source record's lifecycle as mirrored from the
// source-of-truth system.
type LifecycleState string

const (
	StateDraft     LifecycleState = "draft"
	StateCommitted LifecycleState = "committed"
	StateVoided    LifecycleState = "voided"
)

// IsValid checks if the state is one of the supported enum values.
func (s LifecycleState) IsValid() bool {
	switch s {
	case StateDraft, StateCommitted, StateVoided:
		return true
	}
	return false
}

// String returns the string representation.
func (s LifecycleState) String() string { return string(s) }

// BusinessEvent is an immutable reference to a finalized source record that
// may require downstream fiscal artifacts. Amount and timestamp are fixed at
// commit time; only the lifecycle state changes afterwards (commit → void).
type BusinessEvent struct {
	Ref          domain.EventRef
	Organization domain.RegistryNumber
	// Counterparty carries the customer taxpayer id for B2B events; empty for
	// consumer sales.
	Counterparty domain.TaxpayerID
	Amount       float64
	Timestamp    time.Time
	State        LifecycleState
}

// IsCommitted reports whether the event is finalized and expects artifacts.
func (e BusinessEvent) IsCommitted() bool { return e.State == StateCommitted }

// IsVoided reports whether the source record was cancelled.
func (e BusinessEvent) IsVoided() bool { return e.State == StateVoided }
