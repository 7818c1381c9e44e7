package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/petrelay/petrelay/internal/models"
)

type PetStore struct {
	pool *pgxpool.Pool
}

func NewPetStore(pool *pgxpool.Pool) *PetStore {
	return &PetStore{pool: pool}
}

func (s *PetStore) Create(ctx context.Context, orgID uuid.UUID, contactID uuid.UUID, name, species, breed, notes string) (*models.Pet, error) {
	query := `
		INSERT INTO pets (organization_id, contact_id, name, species, breed, notes, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, now())
		RETURNING id, organization_id, contact_id, name, species, breed, notes, is_active, created_at`

	var p models.Pet
	err := s.pool.QueryRow(ctx, query, orgID, contactID, name, species, breed, notes).Scan(
		&p.ID,
		&p.OrganizationID,
		&p.ContactID,
		&p.Name,
		&p.Species,
		&p.Breed,
		&p.Notes,
		&p.IsActive,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pet: %w", err)
	}
	return &p, nil
}

func (s *PetStore) ListByContact(ctx context.Context, orgID uuid.UUID, contactID uuid.UUID) ([]models.Pet, error) {
	query := `
		SELECT id, organization_id, contact_id, name, species, breed, notes, is_active, created_at
		FROM pets
		WHERE organization_id = $1 AND contact_id = $2 AND is_active = true
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, orgID, contactID)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	pets := make([]models.Pet, 0)
	for rows.Next() {
		var p models.Pet
		if err := rows.Scan(
			&p.ID,
			&p.OrganizationID,
			&p.ContactID,
			&p.Name,
			&p.Species,
			&p.Breed,
			&p.Notes,
			&p.IsActive,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pet: %w", err)
		}
		pets = append(pets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pets: %w", err)
	}

	return pets, nil
}

func (s *PetStore) Deactivate(ctx context.Context, orgID uuid.UUID, petID uuid.UUID) error {
	query := `
		UPDATE pets
		SET is_active = false
		WHERE organization_id = $1 AND id = $2`

	tag, err := s.pool.Exec(ctx, query, orgID, petID)
	if err != nil {
		return fmt.Errorf("deactivate pet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pet %s not found", petID)
	}
	return nil
}
