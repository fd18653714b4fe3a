package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"taxbridge/pkg/domain"
)

// PostgresStore persists audit events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (id, timestamp, action, doc_type, doc_id, kind, producer, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		event.Timestamp,
		string(event.Action),
		event.Ref.DocType,
		event.Ref.DocID,
		event.Kind.String(),
		event.Producer.String(),
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRef(ctx context.Context, ref domain.EventRef) ([]Event, error) {
	query := `
		SELECT timestamp, action, doc_type, doc_id, kind, producer, detail
		FROM audit_events
		WHERE doc_type = $1 AND doc_id = $2
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, ref.DocType, ref.DocID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev       Event
			action   string
			docType  string
			docID    string
			kind     string
			producer string
		)
		if err := rows.Scan(&ev.Timestamp, &action, &docType, &docID, &kind, &producer, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Action = Action(action)
		ev.Ref = domain.EventRef{DocType: docType, DocID: docID}
		ev.Kind = domain.ArtifactKind(kind)
		ev.Producer = domain.ProducerName(producer)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return out, nil
}
