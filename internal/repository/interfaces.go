package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/petrelay/petrelay/internal/models"
)

// Every method takes context.Context first: each one does I/O, and the
// caller's deadline/cancellation must reach the database.
//
// Every method also takes the organization ID. Multi-tenancy is enforced in
// the application: the repository never trusts the caller and always filters
// by organization, so even a guessed UUID from another tenant returns
// nothing. The handler extracts the organization from the JWT; the worker
// gets it from the job payload.

// OrganizationRepository manages the tenant records themselves.
type OrganizationRepository interface {
	// Create inserts a new organization with empty settings.
	Create(ctx context.Context, name string) (*models.Organization, error)

	// GetByID returns the organization. Returns nil, nil if not found.
	GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// UpdateSettings replaces the settings sub-record wholesale and returns
	// the updated organization.
	UpdateSettings(ctx context.Context, orgID uuid.UUID, settings json.RawMessage) (*models.Organization, error)
}

// UserRepository handles dashboard operator accounts.
type UserRepository interface {
	Create(ctx context.Context, orgID uuid.UUID, email, displayName, phoneNumber, passwordHash string) (*models.User, error)

	// GetByEmail is unscoped: login happens before we know the tenant.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	GetByID(ctx context.Context, orgID uuid.UUID, userID uuid.UUID) (*models.User, error)
}

// OwnerNumberRepository manages the per-organization allow-list that decides
// whether an inbound message is staff traffic or customer traffic.
type OwnerNumberRepository interface {
	// Register adds a number to the allow-list with the given role.
	Register(ctx context.Context, orgID uuid.UUID, phoneNumber, name, role string) (*models.AuthorizedOwnerNumber, error)

	// Deactivate flips is_active off. The row stays.
	Deactivate(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error

	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.AuthorizedOwnerNumber, error)

	// IsActiveOwner is the hot-path routing check: a single equality lookup
	// on (organization_id, phone_number, is_active) executed on every
	// inbound message. No caching.
	IsActiveOwner(ctx context.Context, orgID uuid.UUID, phoneNumber string) (bool, error)

	// GetActiveByPhone returns the allow-list entry (for the staff name in
	// the Aurora context). Returns nil, nil if not found.
	GetActiveByPhone(ctx context.Context, orgID uuid.UUID, phoneNumber string) (*models.AuthorizedOwnerNumber, error)
}

// ContactRepository handles customer records.
type ContactRepository interface {
	Create(ctx context.Context, orgID uuid.UUID, phoneNumber, name string) (*models.Contact, error)

	GetByID(ctx context.Context, orgID uuid.UUID, contactID uuid.UUID) (*models.Contact, error)

	// GetByPhone returns nil, nil if no contact has that number.
	GetByPhone(ctx context.Context, orgID uuid.UUID, phoneNumber string) (*models.Contact, error)

	// FindOrCreate returns the existing contact for the phone number or
	// inserts a bare one (empty name) if none exists.
	FindOrCreate(ctx context.Context, orgID uuid.UUID, phoneNumber string) (*models.Contact, error)

	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Contact, error)

	// ListInactiveSince returns contacts whose conversations have all been
	// quiet since the cutoff (plus contacts with no conversation at all).
	// Feeds the Aurora list_inactive_customers tool.
	ListInactiveSince(ctx context.Context, orgID uuid.UUID, cutoff time.Time, limit int) ([]models.Contact, error)

	Count(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// PetRepository handles pet records under a contact.
type PetRepository interface {
	Create(ctx context.Context, orgID uuid.UUID, contactID uuid.UUID, name, species, breed, notes string) (*models.Pet, error)

	ListByContact(ctx context.Context, orgID uuid.UUID, contactID uuid.UUID) ([]models.Pet, error)

	// Deactivate soft-deletes; pets are never hard-deleted in normal flow.
	Deactivate(ctx context.Context, orgID uuid.UUID, petID uuid.UUID) error
}

// ConversationRepository handles thread resolution and listing.
type ConversationRepository interface {
	// FindOrCreateActive returns the active conversation for (organization,
	// instance, contact), creating one with empty tags if none exists.
	// Backed by a partial unique index, so concurrent callers converge on
	// the same row.
	FindOrCreateActive(ctx context.Context, orgID uuid.UUID, instanceID string, contactID uuid.UUID) (*models.Conversation, error)

	GetByID(ctx context.Context, orgID uuid.UUID, conversationID uuid.UUID) (*models.Conversation, error)

	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Conversation, error)

	// TouchLastMessage bumps last_message_at to the processing timestamp.
	TouchLastMessage(ctx context.Context, orgID uuid.UUID, conversationID uuid.UUID, at time.Time) error

	CountActive(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// MessageRepository handles the append-only message log.
type MessageRepository interface {
	// Create persists one message. conversationID is nil for owner traffic.
	Create(ctx context.Context, orgID uuid.UUID, conversationID *uuid.UUID, direction, senderPhone, body string) (*models.Message, error)

	// ListByConversation returns messages newest first with cursor
	// pagination: before=0 means "from the top".
	ListByConversation(ctx context.Context, orgID uuid.UUID, conversationID uuid.UUID, before int64, limit int) ([]models.Message, error)

	// CountSince feeds the analytics tool.
	CountSince(ctx context.Context, orgID uuid.UUID, since time.Time) (int64, error)
}
