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

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) Create(ctx context.Context, orgID uuid.UUID, email, displayName, phoneNumber, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (organization_id, email, display_name, phone_number, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, organization_id, email, display_name, phone_number, password_hash, created_at`

	var u models.User
	err := s.pool.QueryRow(ctx, query, orgID, email, displayName, phoneNumber, passwordHash).Scan(
		&u.ID,
		&u.OrganizationID,
		&u.Email,
		&u.DisplayName,
		&u.PhoneNumber,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, organization_id, email, display_name, phone_number, password_hash, created_at
		FROM users
		WHERE email = $1`

	var u models.User
	err := s.pool.QueryRow(ctx, query, email).Scan(
		&u.ID,
		&u.OrganizationID,
		&u.Email,
		&u.DisplayName,
		&u.PhoneNumber,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, orgID uuid.UUID, userID uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, organization_id, email, display_name, phone_number, password_hash, created_at
		FROM users
		WHERE organization_id = $1 AND id = $2`

	var u models.User
	err := s.pool.QueryRow(ctx, query, orgID, userID).Scan(
		&u.ID,
		&u.OrganizationID,
		&u.Email,
		&u.DisplayName,
		&u.PhoneNumber,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
