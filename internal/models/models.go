package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Organization is the top-level isolation boundary: a petshop, a veterinary
// clinic, a daycare/hotel operator. Every contact, pet, conversation and
// message belongs to exactly one organization; company A never sees company
// B's data. Settings is a free-form JSON sub-record (greeting text, opening
// hours, persona tweaks) so operators can reconfigure without a migration.
type Organization struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Settings  json.RawMessage `json:"settings"`
	CreatedAt time.Time       `json:"created_at"`
}

// User is a dashboard operator within an organization. PhoneNumber is the
// operator's own WhatsApp number; the admin queue surface checks it against
// the authorized owner numbers before letting anyone in.
type User struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	PhoneNumber    string    `json:"phone_number"`
	PasswordHash   string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuthorizedOwnerNumber allow-lists a WhatsApp number as belonging to the
// business owner/staff rather than a customer. Inbound messages from these
// numbers are routed to the Aurora business assistant instead of the
// customer persona. Rows are deactivated, never deleted.
//
// Role is a plain string ("owner", "manager", "admin") validated at the
// handler layer. It is advisory; nothing downstream branches on it.
type AuthorizedOwnerNumber struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	PhoneNumber    string    `json:"phone_number"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Contact is a customer, identified by phone number within an organization.
// Created lazily on the first inbound message when no row exists yet, so
// Name may be empty until an operator fills it in.
type Contact struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	PhoneNumber    string    `json:"phone_number"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Pet belongs to exactly one Contact. Notes carries free-form medical and
// behavioral information. Soft-deactivated, never hard-deleted.
type Pet struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	ContactID      uuid.UUID `json:"contact_id"`
	Name           string    `json:"name"`
	Species        string    `json:"species"`
	Breed          string    `json:"breed"`
	Notes          string    `json:"notes"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation statuses. Only "active" participates in routing; the rest
// exist for the dashboard.
const (
	ConversationActive   = "active"
	ConversationClosed   = "closed"
	ConversationArchived = "archived"
)

// Conversation is the thread between one contact and one WhatsApp instance.
// At most one active conversation exists per (organization, instance,
// contact), enforced by a partial unique index, so two workers racing on
// the same inbound contact converge on a single row.
type Conversation struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	InstanceID     string    `json:"instance_id"`
	ContactID      uuid.UUID `json:"contact_id"`
	Status         string    `json:"status"`
	Tags           []string  `json:"tags"`
	LastMessageAt  time.Time `json:"last_message_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message is one half of an exchange, append-only. The worker always writes
// them in an inbound+outbound pair after the reply is generated.
//
// ConversationID is nil for owner traffic; Aurora chats with staff outside
// any customer thread.
//
// ID is bigserial, not UUID: messages are the highest-volume table, and an
// int64 sequence is smaller, naturally ordered (higher ID = newer), and
// cursor-friendly.
type Message struct {
	ID             int64      `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Direction      string     `json:"direction"`
	SenderPhone    string     `json:"sender_phone"`
	Body           string     `json:"body"`
	CreatedAt      time.Time  `json:"created_at"`
}
