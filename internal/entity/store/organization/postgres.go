package organization

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"taxbridge/internal/entity/models"
	"taxbridge/pkg/domain"
	"taxbridge/pkg/platform/sentinel"
	"taxbridge/pkg/requestcontext"
)

// PostgresStore persists organizations in PostgreSQL.
//
// Merge is implemented as an upsert whose SET clause only ever fills empty
// columns (COALESCE over NULLIF) and unions the auxiliary JSON with stored
// entries winning, so concurrent enrichers cannot downgrade each other.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed organization store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Find(ctx context.Context, regNo domain.RegistryNumber) (*models.Organization, error) {
	query := `
		SELECT registry_number, taxpayer_id, display_name, auxiliary, created_at, updated_at
		FROM organizations
		WHERE registry_number = $1
	`
	row := s.db.QueryRowContext(ctx, query, regNo.String())
	org, err := scanOrganization(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	return org, nil
}

func (s *PostgresStore) Merge(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	if org.RegistryNumber.IsNil() {
		return nil, sentinel.ErrInvalidState
	}

	aux, err := json.Marshal(nonEmptyAuxiliary(org.Auxiliary))
	if err != nil {
		return nil, fmt.Errorf("marshal auxiliary identifiers: %w", err)
	}
	now := requestcontext.Now(ctx)

	// Stored non-empty values win on conflict; the incoming row only fills
	// gaps. The auxiliary union is ordered incoming-first so stored entries
	// overwrite incoming ones.
	query := `
		INSERT INTO organizations (registry_number, taxpayer_id, display_name, auxiliary, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $5)
		ON CONFLICT (registry_number) DO UPDATE SET
			taxpayer_id  = COALESCE(organizations.taxpayer_id, EXCLUDED.taxpayer_id),
			display_name = COALESCE(organizations.display_name, EXCLUDED.display_name),
			auxiliary    = EXCLUDED.auxiliary || organizations.auxiliary,
			updated_at   = EXCLUDED.updated_at
		RETURNING registry_number, taxpayer_id, display_name, auxiliary, created_at, updated_at
	`
	row := s.db.QueryRowContext(ctx, query,
		org.RegistryNumber.String(),
		org.TaxpayerID.String(),
		org.DisplayName,
		aux,
		now,
	)
	merged, err := scanOrganization(row)
	if err != nil {
		return nil, fmt.Errorf("merge organization: %w", err)
	}
	return merged, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Organization, error) {
	query := `
		SELECT registry_number, taxpayer_id, display_name, auxiliary, created_at, updated_at
		FROM organizations
		ORDER BY registry_number
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var out []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		out = append(out, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var (
		org         models.Organization
		regNo       string
		taxpayerID  sql.NullString
		displayName sql.NullString
		aux         []byte
	)
	if err := row.Scan(&regNo, &taxpayerID, &displayName, &aux, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, err
	}
	org.RegistryNumber = domain.RegistryNumber(regNo)
	org.TaxpayerID = domain.TaxpayerID(taxpayerID.String)
	org.DisplayName = displayName.String
	org.Auxiliary = make(map[domain.ProducerName]string)
	if len(aux) > 0 {
		if err := json.Unmarshal(aux, &org.Auxiliary); err != nil {
			return nil, fmt.Errorf("unmarshal auxiliary identifiers: %w", err)
		}
	}
	return &org, nil
}

func nonEmptyAuxiliary(aux map[domain.ProducerName]string) map[domain.ProducerName]string {
	out := make(map[domain.ProducerName]string, len(aux))
	for k, v := range aux {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
