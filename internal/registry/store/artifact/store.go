// Package artifact persists the artifact ledger. The store is the arbiter of
// the uniqueness invariant: at most one Pending/Committed record per
// (event, kind). TryReserve is the single compare-and-set everything else
// leans on.
package artifact

import (
	"context"
	"time"

	"taxbridge/internal/registry/models"
	"taxbridge/pkg/domain"
)

// Reservation carries what TryReserve needs to create a Pending record.
type Reservation struct {
	Event        domain.EventRef
	Kind         domain.ArtifactKind
	Producer     domain.ProducerName
	Organization domain.RegistryNumber
}

// Store is the persistence surface for artifact records.
type Store interface {
	// TryReserve atomically creates a Pending record iff no live record
	// exists for the key. A Pending record created before reclaimBefore is
	// treated as abandoned: it is marked superseded (with the abandonment
	// noted) and the new reservation wins in the same atomic step. Exactly
	// one concurrent caller succeeds; the rest get sentinel.ErrAlreadyReserved.
	TryReserve(ctx context.Context, res Reservation, reclaimBefore time.Time) (*models.ArtifactRecord, error)

	// Commit transitions the token's record Pending -> Committed, recording
	// the external reference and amount. Returns sentinel.ErrInvalidToken if
	// the record is missing or no longer Pending (e.g. voided concurrently).
	Commit(ctx context.Context, token models.ReservationToken, externalRef string, amount float64) (*models.ArtifactRecord, error)

	// Fail transitions the token's record Pending -> Failed, recording the
	// cause. Returns sentinel.ErrInvalidToken under the same conditions as
	// Commit.
	Fail(ctx context.Context, token models.ReservationToken, cause string) (*models.ArtifactRecord, error)

	// Void transitions the live record for the key to Voided. Voiding an
	// absent or already-Voided key is a no-op success: cancellation retries
	// are expected.
	Void(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) error

	// Lookup returns the current record for the key: the live one if present,
	// otherwise the most recently created. sentinel.ErrNotFound when no
	// record ever existed.
	Lookup(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) (*models.ArtifactRecord, error)

	// History returns every record ever created for the key, oldest first.
	History(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) ([]*models.ArtifactRecord, error)

	// Supersede marks the current Failed record for the key as Superseded so
	// a fresh reservation may be taken. Returns sentinel.ErrInvalidState when
	// the current record is not Failed, sentinel.ErrNotFound when absent.
	Supersede(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) error
}
