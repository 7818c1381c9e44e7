package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/petrelay/petrelay/internal/models"
)

type OrganizationStore struct {
	pool *pgxpool.Pool
}

func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{pool: pool}
}

func (s *OrganizationStore) Create(ctx context.Context, name string) (*models.Organization, error) {
	query := `
		INSERT INTO organizations (name, settings, created_at)
		VALUES ($1, '{}', now())
		RETURNING id, name, settings, created_at`

	var org models.Organization
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&org.ID,
		&org.Name,
		&org.Settings,
		&org.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert organization: %w", err)
	}
	return &org, nil
}

func (s *OrganizationStore) GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT id, name, settings, created_at
		FROM organizations
		WHERE id = $1`

	var org models.Organization
	err := s.pool.QueryRow(ctx, query, orgID).Scan(
		&org.ID,
		&org.Name,
		&org.Settings,
		&org.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

func (s *OrganizationStore) UpdateSettings(ctx context.Context, orgID uuid.UUID, settings json.RawMessage) (*models.Organization, error) {
	query := `
		UPDATE organizations
		SET settings = $2
		WHERE id = $1
		RETURNING id, name, settings, created_at`

	var org models.Organization
	err := s.pool.QueryRow(ctx, query, orgID, settings).Scan(
		&org.ID,
		&org.Name,
		&org.Settings,
		&org.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update organization settings: %w", err)
	}
	return &org, nil
}
