package models

import (
	"time"

	"github.com/google/uuid"

	"taxbridge/pkg/domain"
)

// ArtifactStatus tracks an artifact record through its lifecycle.
type ArtifactStatus string

const (
	// StatusPending: a producer holds the reservation and is calling out.
	StatusPending ArtifactStatus = "pending"
	// StatusCommitted: the external service confirmed the artifact.
	StatusCommitted ArtifactStatus = "committed"
	// StatusVoided: the originating event was cancelled and the artifact
	// reversed.
	StatusVoided ArtifactStatus = "voided"
	// StatusFailed: the producer call failed unrecoverably; a fresh attempt
	// requires an explicit supersede first.
	StatusFailed ArtifactStatus = "failed"
	// StatusSuperseded: a Failed or abandoned record that has been replaced.
	StatusSuperseded ArtifactStatus = "superseded"
)

// IsValid checks if the status is one of the supported enum values.
func (s ArtifactStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusCommitted, StatusVoided, StatusFailed, StatusSuperseded:
		return true
	}
	return false
}

// IsLive reports whether the status occupies the (event, kind) slot. The
// central uniqueness invariant is: at most one live record per key.
func (s ArtifactStatus) IsLive() bool {
	return s == StatusPending || s == StatusCommitted
}

// String returns the string representation.
func (s ArtifactStatus) String() string { return string(s) }

// ArtifactRecord is one downstream fiscal artifact tied to exactly one
// business event and one artifact kind. The registry owns these records; they
// are the only mutable state this system persists.
type ArtifactRecord struct {
	ID           uuid.UUID
	Event        domain.EventRef
	Kind         domain.ArtifactKind
	Producer     domain.ProducerName
	Organization domain.RegistryNumber

	// ExternalRef is the id assigned by the external service on commit.
	ExternalRef string
	Amount      float64

	Status    ArtifactStatus
	LastError string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy so stores can hand out records without aliasing.
func (r *ArtifactRecord) Clone() *ArtifactRecord {
	cp := *r
	return &cp
}

// Token derives the reservation token for a freshly reserved record.
func (r *ArtifactRecord) Token() ReservationToken {
	return ReservationToken{
		RecordID: r.ID,
		Event:    r.Event,
		Kind:     r.Kind,
		Producer: r.Producer,
	}
}

// ReservationToken grants its holder the exclusive right to commit or fail
// one Pending record. Tokens are single-use.
type ReservationToken struct {
	RecordID uuid.UUID
	Event    domain.EventRef
	Kind     domain.ArtifactKind
	Producer domain.ProducerName
}
