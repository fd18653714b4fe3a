package coordinator

import (
	regmodels "taxbridge/internal/registry/models"
	"taxbridge/pkg/domain"
)

// OutcomeStatus classifies what an attempt concluded.
type OutcomeStatus string

const (
	// OutcomeCompleted: a new artifact was created and committed.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeAlreadySatisfied: a committed artifact already covers the key.
	OutcomeAlreadySatisfied OutcomeStatus = "already_satisfied"
	// OutcomeInProgress: another attempt holds the reservation.
	OutcomeInProgress OutcomeStatus = "in_progress"
	// OutcomeFailed: the producer call failed; the failure is recorded and
	// blocks further attempts until repaired.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeBlockedByFailure: a prior recorded failure blocks this attempt;
	// an operator must repair before retrying.
	OutcomeBlockedByFailure OutcomeStatus = "blocked_by_failure"
	// OutcomeNoEligibleProducer: no producer applies; nothing to create.
	OutcomeNoEligibleProducer OutcomeStatus = "no_eligible_producer"
	// OutcomeEventVoided: the source event is cancelled; any live artifact
	// was voided instead of creating one.
	OutcomeEventVoided OutcomeStatus = "event_voided"
	// OutcomeCompensated: the event was voided while the external call was
	// in flight; the created artifact was reversed.
	OutcomeCompensated OutcomeStatus = "compensated"
)

// String returns the string representation.
func (s OutcomeStatus) String() string { return string(s) }

// Outcome is the result of one attempt, cancel or repair.
type Outcome struct {
	Status      OutcomeStatus
	Producer    domain.ProducerName
	ExternalRef string
	Record      *regmodels.ArtifactRecord
	// Reason carries the producer error or blocking detail for failed and
	// blocked outcomes.
	Reason string
}
