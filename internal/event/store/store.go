// Package store adapts the source-of-truth document store. taxbridge only
// reads event records and their lifecycle; the records themselves are owned by
// the source system.
package store

import (
	"context"
	"time"

	"taxbridge/internal/event/models"
	"taxbridge/pkg/domain"
)

// EventStore is the read surface over mirrored business events.
type EventStore interface {
	// Find returns the event for a ref, or sentinel.ErrNotFound.
	Find(ctx context.Context, ref domain.EventRef) (*models.BusinessEvent, error)

	// ListCommitted returns committed events with timestamps in [from, to),
	// ordered by timestamp. Voided and draft events are excluded.
	ListCommitted(ctx context.Context, from, to time.Time) ([]*models.BusinessEvent, error)
}

// Annotator writes outcome annotations back onto source records. Annotation
// fields are the only write access taxbridge has to source data.
type Annotator interface {
	Annotate(ctx context.Context, ref domain.EventRef, key, value string) error
}
