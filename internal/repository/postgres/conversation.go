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

type ConversationStore struct {
	pool *pgxpool.Pool
}

func NewConversationStore(pool *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{pool: pool}
}

// FindOrCreateActive resolves the single active thread for (organization,
// instance, contact). The insert races are settled by the partial unique
// index ux_conversations_active: ON CONFLICT DO NOTHING means the loser of a
// race inserts nothing, and the follow-up select returns the winner's row.
func (s *ConversationStore) FindOrCreateActive(ctx context.Context, orgID uuid.UUID, instanceID string, contactID uuid.UUID) (*models.Conversation, error) {
	insert := `
		INSERT INTO conversations (organization_id, instance_id, contact_id, status, tags, last_message_at, created_at)
		VALUES ($1, $2, $3, 'active', '{}', now(), now())
		ON CONFLICT (organization_id, instance_id, contact_id) WHERE status = 'active'
		DO NOTHING`

	if _, err := s.pool.Exec(ctx, insert, orgID, instanceID, contactID); err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}

	query := `
		SELECT id, organization_id, instance_id, contact_id, status, tags, last_message_at, created_at
		FROM conversations
		WHERE organization_id = $1 AND instance_id = $2 AND contact_id = $3 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1`

	var v models.Conversation
	err := s.pool.QueryRow(ctx, query, orgID, instanceID, contactID).Scan(
		&v.ID,
		&v.OrganizationID,
		&v.InstanceID,
		&v.ContactID,
		&v.Status,
		&v.Tags,
		&v.LastMessageAt,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("select active conversation: %w", err)
	}
	return &v, nil
}

func (s *ConversationStore) GetByID(ctx context.Context, orgID uuid.UUID, conversationID uuid.UUID) (*models.Conversation, error) {
	query := `
		SELECT id, organization_id, instance_id, contact_id, status, tags, last_message_at, created_at
		FROM conversations
		WHERE organization_id = $1 AND id = $2`

	var v models.Conversation
	err := s.pool.QueryRow(ctx, query, orgID, conversationID).Scan(
		&v.ID,
		&v.OrganizationID,
		&v.InstanceID,
		&v.ContactID,
		&v.Status,
		&v.Tags,
		&v.LastMessageAt,
		&v.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &v, nil
}

func (s *ConversationStore) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Conversation, error) {
	query := `
		SELECT id, organization_id, instance_id, contact_id, status, tags, last_message_at, created_at
		FROM conversations
		WHERE organization_id = $1
		ORDER BY last_message_at DESC`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var v models.Conversation
		if err := rows.Scan(
			&v.ID,
			&v.OrganizationID,
			&v.InstanceID,
			&v.ContactID,
			&v.Status,
			&v.Tags,
			&v.LastMessageAt,
			&v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return conversations, nil
}

func (s *ConversationStore) TouchLastMessage(ctx context.Context, orgID uuid.UUID, conversationID uuid.UUID, at time.Time) error {
	query := `
		UPDATE conversations
		SET last_message_at = $3
		WHERE organization_id = $1 AND id = $2`

	if _, err := s.pool.Exec(ctx, query, orgID, conversationID, at); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

func (s *ConversationStore) CountActive(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM conversations WHERE organization_id = $1 AND status = 'active'`, orgID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active conversations: %w", err)
	}
	return count, nil
}
