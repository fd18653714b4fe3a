// Package reconcile sweeps committed events against the artifact ledger and
// the external ground truth, reporting discrepancies without mutating
// anything. Findings feed operator tooling; repairs stay explicit.
package reconcile

import (
	"time"

	"github.com/google/uuid"

	"taxbridge/pkg/domain"
)

// FindingKind classifies a discrepancy.
type FindingKind string

const (
	// FindingMissingArtifact: a committed event past the grace period has no
	// committed artifact for an expected kind.
	FindingMissingArtifact FindingKind = "missing_artifact"
	// FindingDuplicateArtifact: more than one external reference was ever
	// recorded for one (event, kind) slot, or committed records of different
	// events share a reference.
	FindingDuplicateArtifact FindingKind = "duplicate_artifact"
	// FindingIdentityMismatch: an artifact record was created under a
	// different organization than the event resolves to, or two records for
	// the same slot resolved to different organizations.
	FindingIdentityMismatch FindingKind = "identity_mismatch"
	// FindingAmountMismatch: the committed amount differs from the event
	// amount beyond tolerance.
	FindingAmountMismatch FindingKind = "amount_mismatch"
)

// String returns the string representation.
func (k FindingKind) String() string { return string(k) }

// Finding is one observed discrepancy. Immutable once reported.
type Finding struct {
	Kind     FindingKind         `json:"kind"`
	Event    domain.EventRef     `json:"event"`
	Artifact domain.ArtifactKind `json:"artifact_kind"`
	// Records lists every artifact record involved; duplicate findings carry
	// both offenders.
	Records []uuid.UUID `json:"records,omitempty"`
	Detail  string      `json:"detail"`
	SeenAt  time.Time   `json:"seen_at"`
}
