package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taxbridge/internal/event/models"
	"taxbridge/pkg/domain"
	"taxbridge/pkg/platform/sentinel"
)

// PostgresStore reads the business event mirror maintained by the source
// sync. taxbridge never inserts or deletes rows here; the only write is the
// annotation merge, which records artifact outcomes back onto the mirrored
// record.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed event store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `doc_type, doc_id, organization, COALESCE(counterparty, ''),
	amount, "timestamp", state`

func (s *PostgresStore) Find(ctx context.Context, ref domain.EventRef) (*models.BusinessEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM business_events
		WHERE doc_type = $1 AND doc_id = $2
	`, eventColumns)

	event, err := scanEvent(s.db.QueryRowContext(ctx, query, ref.DocType, ref.DocID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) ListCommitted(ctx context.Context, from, to time.Time) ([]*models.BusinessEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM business_events
		WHERE state = 'committed' AND "timestamp" >= $1 AND "timestamp" < $2
		ORDER BY "timestamp"
	`, eventColumns)

	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list committed events: %w", err)
	}
	defer rows.Close()

	var events []*models.BusinessEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Annotate merges a single key into the mirrored record's annotation set.
// Missing events are ignored: annotation is best-effort and the source record
// may already have been pruned.
func (s *PostgresStore) Annotate(ctx context.Context, ref domain.EventRef, key, value string) error {
	query := `
		UPDATE business_events
		SET annotations = annotations || jsonb_build_object($3::text, $4::text)
		WHERE doc_type = $1 AND doc_id = $2
	`
	if _, err := s.db.ExecContext(ctx, query, ref.DocType, ref.DocID, key, value); err != nil {
		return fmt.Errorf("annotate event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.BusinessEvent, error) {
	var event models.BusinessEvent
	if err := row.Scan(
		&event.Ref.DocType,
		&event.Ref.DocID,
		&event.Organization,
		&event.Counterparty,
		&event.Amount,
		&event.Timestamp,
		&event.State,
	); err != nil {
		return nil, err
	}
	return &event, nil
}
