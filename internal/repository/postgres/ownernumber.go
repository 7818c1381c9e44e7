package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/petrelay/petrelay/internal/models"
)

type OwnerNumberStore struct {
	pool *pgxpool.Pool
}

func NewOwnerNumberStore(pool *pgxpool.Pool) *OwnerNumberStore {
	return &OwnerNumberStore{pool: pool}
}

func (s *OwnerNumberStore) Register(ctx context.Context, orgID uuid.UUID, phoneNumber, name, role string) (*models.AuthorizedOwnerNumber, error) {
	// Re-registering a deactivated number reactivates it instead of
	// violating the (organization_id, phone_number) unique constraint.
	query := `
		INSERT INTO authorized_owner_numbers (organization_id, phone_number, name, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, true, now())
		ON CONFLICT (organization_id, phone_number)
		DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role, is_active = true
		RETURNING id, organization_id, phone_number, name, role, is_active, created_at`

	var n models.AuthorizedOwnerNumber
	err := s.pool.QueryRow(ctx, query, orgID, phoneNumber, name, role).Scan(
		&n.ID,
		&n.OrganizationID,
		&n.PhoneNumber,
		&n.Name,
		&n.Role,
		&n.IsActive,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("register owner number: %w", err)
	}
	return &n, nil
}

func (s *OwnerNumberStore) Deactivate(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	query := `
		UPDATE authorized_owner_numbers
		SET is_active = false
		WHERE organization_id = $1 AND id = $2`

	tag, err := s.pool.Exec(ctx, query, orgID, id)
	if err != nil {
		return fmt.Errorf("deactivate owner number: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("owner number %s not found", id)
	}
	return nil
}

func (s *OwnerNumberStore) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.AuthorizedOwnerNumber, error) {
	query := `
		SELECT id, organization_id, phone_number, name, role, is_active, created_at
		FROM authorized_owner_numbers
		WHERE organization_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list owner numbers: %w", err)
	}
	defer rows.Close()

	numbers := make([]models.AuthorizedOwnerNumber, 0)
	for rows.Next() {
		var n models.AuthorizedOwnerNumber
		if err := rows.Scan(
			&n.ID,
			&n.OrganizationID,
			&n.PhoneNumber,
			&n.Name,
			&n.Role,
			&n.IsActive,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan owner number: %w", err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owner numbers: %w", err)
	}

	return numbers, nil
}

// IsActiveOwner is the routing decision for every inbound message: a single
// equality lookup, no caching. EXISTS keeps it to an index probe.
func (s *OwnerNumberStore) IsActiveOwner(ctx context.Context, orgID uuid.UUID, phoneNumber string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM authorized_owner_numbers
			WHERE organization_id = $1 AND phone_number = $2 AND is_active = true
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, orgID, phoneNumber).Scan(&exists); err != nil {
		return false, fmt.Errorf("check owner number: %w", err)
	}
	return exists, nil
}

func (s *OwnerNumberStore) GetActiveByPhone(ctx context.Context, orgID uuid.UUID, phoneNumber string) (*models.AuthorizedOwnerNumber, error) {
	query := `
		SELECT id, organization_id, phone_number, name, role, is_active, created_at
		FROM authorized_owner_numbers
		WHERE organization_id = $1 AND phone_number = $2 AND is_active = true`

	var n models.AuthorizedOwnerNumber
	err := s.pool.QueryRow(ctx, query, orgID, phoneNumber).Scan(
		&n.ID,
		&n.OrganizationID,
		&n.PhoneNumber,
		&n.Name,
		&n.Role,
		&n.IsActive,
		&n.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get owner number: %w", err)
	}
	return &n, nil
}
