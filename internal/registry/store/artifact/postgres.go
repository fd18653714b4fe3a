package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taxbridge/internal/registry/models"
	"taxbridge/pkg/domain"
	"taxbridge/pkg/platform/sentinel"
	"taxbridge/pkg/requestcontext"
)

// PostgresStore persists the artifact ledger in PostgreSQL.
//
// The uniqueness invariant is enforced by a partial unique index on
// (doc_type, doc_id, kind) over live statuses; TryReserve inserts with
// ON CONFLICT DO NOTHING against that index so concurrent reservations race
// in the database, not in application code.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed artifact store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const artifactColumns = `id, doc_type, doc_id, kind, producer, organization,
	COALESCE(external_ref, ''), COALESCE(amount, 0), status, COALESCE(last_error, ''),
	created_at, updated_at`

func (s *PostgresStore) TryReserve(ctx context.Context, res Reservation, reclaimBefore time.Time) (*models.ArtifactRecord, error) {
	now := requestcontext.Now(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer tx.Rollback()

	// Reclaim an abandoned Pending first; the partial index then admits the
	// new row in the same transaction.
	reclaim := `
		UPDATE artifact_records
		SET status = 'superseded', last_error = 'reservation abandoned', updated_at = $4
		WHERE doc_type = $1 AND doc_id = $2 AND kind = $3
		  AND status = 'pending' AND created_at < $5
	`
	if _, err := tx.ExecContext(ctx, reclaim,
		res.Event.DocType, res.Event.DocID, res.Kind.String(), now, reclaimBefore,
	); err != nil {
		return nil, fmt.Errorf("reclaim abandoned reservation: %w", err)
	}

	insert := `
		INSERT INTO artifact_records (id, doc_type, doc_id, kind, producer, organization, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $7)
		ON CONFLICT (doc_type, doc_id, kind) WHERE status IN ('pending', 'committed') DO NOTHING
		RETURNING ` + artifactColumns
	row := tx.QueryRowContext(ctx, insert,
		uuid.New(), res.Event.DocType, res.Event.DocID, res.Kind.String(),
		res.Producer.String(), res.Organization.String(), now,
	)
	rec, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrAlreadyReserved
		}
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reserve tx: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Commit(ctx context.Context, token models.ReservationToken, externalRef string, amount float64) (*models.ArtifactRecord, error) {
	now := requestcontext.Now(ctx)
	query := `
		UPDATE artifact_records
		SET status = 'committed', external_ref = $2, amount = $3, updated_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + artifactColumns
	row := s.db.QueryRowContext(ctx, query, token.RecordID, externalRef, amount, now)
	rec, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrInvalidToken
		}
		return nil, fmt.Errorf("commit artifact: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Fail(ctx context.Context, token models.ReservationToken, cause string) (*models.ArtifactRecord, error) {
	now := requestcontext.Now(ctx)
	query := `
		UPDATE artifact_records
		SET status = 'failed', last_error = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + artifactColumns
	row := s.db.QueryRowContext(ctx, query, token.RecordID, cause, now)
	rec, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrInvalidToken
		}
		return nil, fmt.Errorf("fail artifact: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Void(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) error {
	now := requestcontext.Now(ctx)
	query := `
		UPDATE artifact_records
		SET status = 'voided', updated_at = $4
		WHERE doc_type = $1 AND doc_id = $2 AND kind = $3
		  AND status IN ('pending', 'committed')
	`
	if _, err := s.db.ExecContext(ctx, query, event.DocType, event.DocID, kind.String(), now); err != nil {
		return fmt.Errorf("void artifact: %w", err)
	}
	return nil
}

func (s *PostgresStore) Lookup(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) (*models.ArtifactRecord, error) {
	query := `
		SELECT ` + artifactColumns + `
		FROM artifact_records
		WHERE doc_type = $1 AND doc_id = $2 AND kind = $3
		ORDER BY (status IN ('pending', 'committed')) DESC, created_at DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, event.DocType, event.DocID, kind.String())
	rec, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lookup artifact: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) History(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) ([]*models.ArtifactRecord, error) {
	query := `
		SELECT ` + artifactColumns + `
		FROM artifact_records
		WHERE doc_type = $1 AND doc_id = $2 AND kind = $3
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, event.DocType, event.DocID, kind.String())
	if err != nil {
		return nil, fmt.Errorf("list artifact history: %w", err)
	}
	defer rows.Close()

	var out []*models.ArtifactRecord
	for rows.Next() {
		rec, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifact history: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Supersede(ctx context.Context, event domain.EventRef, kind domain.ArtifactKind) error {
	now := requestcontext.Now(ctx)
	query := `
		UPDATE artifact_records
		SET status = 'superseded', updated_at = $4
		WHERE id = (
			SELECT id FROM artifact_records
			WHERE doc_type = $1 AND doc_id = $2 AND kind = $3
			ORDER BY created_at DESC
			LIMIT 1
		) AND status = 'failed'
	`
	result, err := s.db.ExecContext(ctx, query, event.DocType, event.DocID, kind.String(), now)
	if err != nil {
		return fmt.Errorf("supersede artifact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("supersede artifact: %w", err)
	}
	if affected == 0 {
		if _, err := s.Lookup(ctx, event, kind); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*models.ArtifactRecord, error) {
	var (
		rec      models.ArtifactRecord
		docType  string
		docID    string
		kind     string
		producer string
		orgNo    string
		status   string
	)
	if err := row.Scan(&rec.ID, &docType, &docID, &kind, &producer, &orgNo,
		&rec.ExternalRef, &rec.Amount, &status, &rec.LastError,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Event = domain.EventRef{DocType: docType, DocID: docID}
	rec.Kind = domain.ArtifactKind(kind)
	rec.Producer = domain.ProducerName(producer)
	rec.Organization = domain.RegistryNumber(orgNo)
	rec.Status = models.ArtifactStatus(status)
	return &rec, nil
}
