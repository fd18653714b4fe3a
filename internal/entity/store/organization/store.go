// Package organization persists canonical Organization records. Two
// implementations: in-memory for development and tests, postgres for
// production. Both expose the same merge-only write discipline.
package organization

import (
	"context"

	"taxbridge/internal/entity/models"
	"taxbridge/pkg/domain"
)

// Store is the persistence surface for organizations.
type Store interface {
	// Find returns the organization keyed by registry number, or
	// sentinel.ErrNotFound.
	Find(ctx context.Context, regNo domain.RegistryNumber) (*models.Organization, error)

	// Merge upserts merge-only: creates the organization when absent,
	// otherwise folds in identifiers per Organization.MergeFrom. It must be
	// safe against concurrent callers enriching the same organization; no
	// interleaving may drop a previously stored non-empty value.
	Merge(ctx context.Context, org *models.Organization) (*models.Organization, error)

	// List returns all organizations (admin surface).
	List(ctx context.Context) ([]*models.Organization, error)
}
