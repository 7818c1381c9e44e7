package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/petrelay/petrelay/internal/models"
)

type ContactStore struct {
	pool *pgxpool.Pool
}

func NewContactStore(pool *pgxpool.Pool) *ContactStore {
	return &ContactStore{pool: pool}
}

func (s *ContactStore) Create(ctx context.Context, orgID uuid.UUID, phoneNumber, name string) (*models.Contact, error) {
	query := `
		INSERT INTO contacts (organization_id, phone_number, name, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, organization_id, phone_number, name, created_at`

	var c models.Contact
	err := s.pool.QueryRow(ctx, query, orgID, phoneNumber, name).Scan(
		&c.ID,
		&c.OrganizationID,
		&c.PhoneNumber,
		&c.Name,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	return &c, nil
}

func (s *ContactStore) GetByID(ctx context.Context, orgID uuid.UUID, contactID uuid.UUID) (*models.Contact, error) {
	query := `
		SELECT id, organization_id, phone_number, name, created_at
		FROM contacts
		WHERE organization_id = $1 AND id = $2`

	var c models.Contact
	err := s.pool.QueryRow(ctx, query, orgID, contactID).Scan(
		&c.ID,
		&c.OrganizationID,
		&c.PhoneNumber,
		&c.Name,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}

func (s *ContactStore) GetByPhone(ctx context.Context, orgID uuid.UUID, phoneNumber string) (*models.Contact, error) {
	query := `
		SELECT id, organization_id, phone_number, name, created_at
		FROM contacts
		WHERE organization_id = $1 AND phone_number = $2`

	var c models.Contact
	err := s.pool.QueryRow(ctx, query, orgID, phoneNumber).Scan(
		&c.ID,
		&c.OrganizationID,
		&c.PhoneNumber,
		&c.Name,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact by phone: %w", err)
	}
	return &c, nil
}

// FindOrCreate leans on the (organization_id, phone_number) unique
// constraint: insert with ON CONFLICT DO NOTHING, then select. Two workers
// racing on the same first-time caller both land on the same row.
func (s *ContactStore) FindOrCreate(ctx context.Context, orgID uuid.UUID, phoneNumber string) (*models.Contact, error) {
	insert := `
		INSERT INTO contacts (organization_id, phone_number, name, created_at)
		VALUES ($1, $2, '', now())
		ON CONFLICT (organization_id, phone_number) DO NOTHING`

	if _, err := s.pool.Exec(ctx, insert, orgID, phoneNumber); err != nil {
		return nil, fmt.Errorf("upsert contact: %w", err)
	}

	c, err := s.GetByPhone(ctx, orgID, phoneNumber)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("contact %s vanished after upsert", phoneNumber)
	}
	return c, nil
}

func (s *ContactStore) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Contact, error) {
	query := `
		SELECT id, organization_id, phone_number, name, created_at
		FROM contacts
		WHERE organization_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

// ListInactiveSince returns contacts with no conversation activity after the
// cutoff, including contacts who never opened a conversation at all.
func (s *ContactStore) ListInactiveSince(ctx context.Context, orgID uuid.UUID, cutoff time.Time, limit int) ([]models.Contact, error) {
	query := `
		SELECT c.id, c.organization_id, c.phone_number, c.name, c.created_at
		FROM contacts c
		WHERE c.organization_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM conversations v
			WHERE v.organization_id = c.organization_id
			  AND v.contact_id = c.id
			  AND v.last_message_at >= $2
		  )
		ORDER BY c.created_at DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, orgID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list inactive contacts: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

func (s *ContactStore) Count(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM contacts WHERE organization_id = $1`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return count, nil
}

func scanContacts(rows pgx.Rows) ([]models.Contact, error) {
	contacts := make([]models.Contact, 0)
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(
			&c.ID,
			&c.OrganizationID,
			&c.PhoneNumber,
			&c.Name,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}
