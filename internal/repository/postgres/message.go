package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/petrelay/petrelay/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Create(ctx context.Context, orgID uuid.UUID, conversationID *uuid.UUID, direction, senderPhone, body string) (*models.Message, error) {
	// Messages use bigserial, so no ID is passed; RETURNING gives it back.
	// conversationID is nil for owner traffic; pgx maps that to NULL.
	query := `
		INSERT INTO messages (organization_id, conversation_id, direction, sender_phone, body, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, organization_id, conversation_id, direction, sender_phone, body, created_at`

	var msg models.Message
	err := s.pool.QueryRow(ctx, query, orgID, conversationID, direction, senderPhone, body).Scan(
		&msg.ID,
		&msg.OrganizationID,
		&msg.ConversationID,
		&msg.Direction,
		&msg.SenderPhone,
		&msg.Body,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

func (s *MessageStore) ListByConversation(ctx context.Context, orgID uuid.UUID, conversationID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	// Cursor-based pagination: before=0 → first page (newest messages),
	// before=N → messages older than ID N. Ordering on id rather than
	// created_at: bigserial is monotonic, same order, cheaper sort.
	var query string
	var args []any

	if before > 0 {
		query = `
			SELECT id, organization_id, conversation_id, direction, sender_phone, body, created_at
			FROM messages
			WHERE organization_id = $1 AND conversation_id = $2 AND id < $3
			ORDER BY id DESC
			LIMIT $4`
		args = []any{orgID, conversationID, before, limit}
	} else {
		query = `
			SELECT id, organization_id, conversation_id, direction, sender_phone, body, created_at
			FROM messages
			WHERE organization_id = $1 AND conversation_id = $2
			ORDER BY id DESC
			LIMIT $3`
		args = []any{orgID, conversationID, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.OrganizationID,
			&msg.ConversationID,
			&msg.Direction,
			&msg.SenderPhone,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func (s *MessageStore) CountSince(ctx context.Context, orgID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE organization_id = $1 AND created_at >= $2`, orgID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}
