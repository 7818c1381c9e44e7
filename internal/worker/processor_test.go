package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/petrelay/petrelay/internal/ai"
	"github.com/petrelay/petrelay/internal/models"
	"github.com/petrelay/petrelay/internal/queue"
	"github.com/petrelay/petrelay/internal/wa"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------
// Fakes. Hand-written, in the shape the repository interfaces demand;
// no DB or Redis anywhere in these tests.
// ---------------------------------------------------------------

type fakeOrgs struct {
	org *models.Organization
}

func (f *fakeOrgs) Create(ctx context.Context, name string) (*models.Organization, error) {
	return nil, nil
}
func (f *fakeOrgs) GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	return f.org, nil
}
func (f *fakeOrgs) UpdateSettings(ctx context.Context, orgID uuid.UUID, settings json.RawMessage) (*models.Organization, error) {
	return nil, nil
}

type fakeOwners struct {
	owners map[string]*models.AuthorizedOwnerNumber // keyed by phone
}

func (f *fakeOwners) Register(ctx context.Context, orgID uuid.UUID, phoneNumber, name, role string) (*models.AuthorizedOwnerNumber, error) {
	return nil, nil
}
func (f *fakeOwners) Deactivate(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	return nil
}
func (f *fakeOwners) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.AuthorizedOwnerNumber, error) {
	return nil, nil
}
func (f *fakeOwners) IsActiveOwner(ctx context.Context, orgID uuid.UUID, phoneNumber string) (bool, error) {
	owner, ok := f.owners[phoneNumber]
	return ok && owner.IsActive && owner.OrganizationID == orgID, nil
}
func (f *fakeOwners) GetActiveByPhone(ctx context.Context, orgID uuid.UUID, phoneNumber string) (*models.AuthorizedOwnerNumber, error) {
	owner, ok := f.owners[phoneNumber]
	if !ok || !owner.IsActive || owner.OrganizationID != orgID {
		return nil, nil
	}
	return owner, nil
}

type fakeContacts struct {
	byPhone map[string]*models.Contact
	created int
}

func (f *fakeContacts) Create(ctx context.Context, orgID uuid.UUID, phoneNumber, name string) (*models.Contact, error) {
	return nil, nil
}
func (f *fakeContacts) GetByID(ctx context.Context, orgID uuid.UUID, contactID uuid.UUID) (*models.Contact, error) {
	return nil, nil
}
func (f *fakeContacts) GetByPhone(ctx context.Context, orgID uuid.UUID, phoneNumber string) (*models.Contact, error) {
	return f.byPhone[phoneNumber], nil
}
func (f *fakeContacts) FindOrCreate(ctx context.Context, orgID uuid.UUID, phoneNumber string) (*models.Contact, error) {
	if c, ok := f.byPhone[phoneNumber]; ok {
		return c, nil
	}
	c := &models.Contact{
		ID:             uuid.New(),
		OrganizationID: orgID,
		PhoneNumber:    phoneNumber,
	}
	f.byPhone[phoneNumber] = c
	f.created++
	return c, nil
}
func (f *fakeContacts) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Contact, error) {
	return nil, nil
}
func (f *fakeContacts) ListInactiveSince(ctx context.Context, orgID uuid.UUID, cutoff time.Time, limit int) ([]models.Contact, error) {
	return nil, nil
}
func (f *fakeContacts) Count(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return 0, nil
}

type fakeConversations struct {
	active  map[uuid.UUID]*models.Conversation // keyed by contact
	created int
	touched []uuid.UUID
}

func (f *fakeConversations) FindOrCreateActive(ctx context.Context, orgID uuid.UUID, instanceID string, contactID uuid.UUID) (*models.Conversation, error) {
	if v, ok := f.active[contactID]; ok {
		return v, nil
	}
	v := &models.Conversation{
		ID:             uuid.New(),
		OrganizationID: orgID,
		InstanceID:     instanceID,
		ContactID:      contactID,
		Status:         models.ConversationActive,
		Tags:           []string{},
	}
	f.active[contactID] = v
	f.created++
	return v, nil
}
func (f *fakeConversations) GetByID(ctx context.Context, orgID uuid.UUID, conversationID uuid.UUID) (*models.Conversation, error) {
	return nil, nil
}
func (f *fakeConversations) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Conversation, error) {
	return nil, nil
}
func (f *fakeConversations) TouchLastMessage(ctx context.Context, orgID uuid.UUID, conversationID uuid.UUID, at time.Time) error {
	f.touched = append(f.touched, conversationID)
	return nil
}
func (f *fakeConversations) CountActive(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return 0, nil
}

type fakeMessages struct {
	history []models.Message
	created []models.Message
	nextID  int64
}

func (f *fakeMessages) Create(ctx context.Context, orgID uuid.UUID, conversationID *uuid.UUID, direction, senderPhone, body string) (*models.Message, error) {
	f.nextID++
	msg := models.Message{
		ID:             f.nextID,
		OrganizationID: orgID,
		ConversationID: conversationID,
		Direction:      direction,
		SenderPhone:    senderPhone,
		Body:           body,
		CreatedAt:      time.Now(),
	}
	f.created = append(f.created, msg)
	return &msg, nil
}
func (f *fakeMessages) ListByConversation(ctx context.Context, orgID uuid.UUID, conversationID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	return f.history, nil
}
func (f *fakeMessages) CountSince(ctx context.Context, orgID uuid.UUID, since time.Time) (int64, error) {
	return 0, nil
}

type fakeAurora struct {
	calls []ai.OwnerContext
	reply string
	err   error
}

func (f *fakeAurora) ProcessOwnerMessage(ctx context.Context, octx ai.OwnerContext, text string) (string, error) {
	f.calls = append(f.calls, octx)
	return f.reply, f.err
}

type fakeConcierge struct {
	calls []ai.CustomerContext
	texts []string
	reply string
	err   error
}

func (f *fakeConcierge) ProcessMessage(ctx context.Context, cctx ai.CustomerContext, text string) (string, error) {
	f.calls = append(f.calls, cctx)
	f.texts = append(f.texts, text)
	return f.reply, f.err
}

type fakeSender struct {
	sent []wa.TextMessage
	err  error
}

func (f *fakeSender) SendText(ctx context.Context, msg wa.TextMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeFeed struct {
	published []models.Message
}

func (f *fakeFeed) PublishMessage(orgID uuid.UUID, msg models.Message) {
	f.published = append(f.published, msg)
}

// ---------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------

type fixture struct {
	orgID         uuid.UUID
	owners        *fakeOwners
	contacts      *fakeContacts
	conversations *fakeConversations
	messages      *fakeMessages
	aurora        *fakeAurora
	concierge     *fakeConcierge
	sender        *fakeSender
	feed          *fakeFeed
	processor     *Processor
}

func newFixture() *fixture {
	orgID := uuid.New()
	f := &fixture{
		orgID:         orgID,
		owners:        &fakeOwners{owners: map[string]*models.AuthorizedOwnerNumber{}},
		contacts:      &fakeContacts{byPhone: map[string]*models.Contact{}},
		conversations: &fakeConversations{active: map[uuid.UUID]*models.Conversation{}},
		messages:      &fakeMessages{},
		aurora:        &fakeAurora{reply: "aurora reply"},
		concierge:     &fakeConcierge{reply: "concierge reply"},
		sender:        &fakeSender{},
		feed:          &fakeFeed{},
	}
	f.processor = NewProcessor(
		&fakeOrgs{org: &models.Organization{ID: orgID, Name: "PetShop Alegria"}},
		f.owners,
		f.contacts,
		f.conversations,
		f.messages,
		f.aurora,
		f.concierge,
		f.sender,
		f.feed,
		zap.NewNop(),
	)
	return f
}

func (f *fixture) registerOwner(phone, name string) {
	f.owners.owners[phone] = &models.AuthorizedOwnerNumber{
		ID:             uuid.New(),
		OrganizationID: f.orgID,
		PhoneNumber:    phone,
		Name:           name,
		Role:           "owner",
		IsActive:       true,
	}
}

func (f *fixture) inbound(from, content string) InboundMessage {
	return InboundMessage{
		OrganizationID: f.orgID.String(),
		InstanceID:     "inst1",
		From:           from,
		Content:        content,
	}
}

// ---------------------------------------------------------------
// Tests
// ---------------------------------------------------------------

// A registered active owner number goes to Aurora, not the concierge, and
// the message pair is persisted without a conversation.
func TestProcess_OwnerMessage(t *testing.T) {
	f := newFixture()
	f.registerOwner("5511999887766", "Marina")

	err := f.processor.Process(context.Background(), f.inbound("5511999887766@s.whatsapp.net", "oi"))
	require.NoError(t, err)

	require.Len(t, f.aurora.calls, 1)
	require.Empty(t, f.concierge.calls)
	require.Equal(t, "5511999887766", f.aurora.calls[0].PhoneNumber)
	require.Equal(t, "Marina", f.aurora.calls[0].Name)

	require.Len(t, f.sender.sent, 1)
	require.Equal(t, "aurora reply", f.sender.sent[0].Text)
	require.Equal(t, "5511999887766@s.whatsapp.net", f.sender.sent[0].To)

	require.Len(t, f.messages.created, 2)
	require.Equal(t, models.DirectionInbound, f.messages.created[0].Direction)
	require.Equal(t, "oi", f.messages.created[0].Body)
	require.Nil(t, f.messages.created[0].ConversationID)
	require.Equal(t, models.DirectionOutbound, f.messages.created[1].Direction)
	require.Equal(t, "aurora reply", f.messages.created[1].Body)
	require.Nil(t, f.messages.created[1].ConversationID)

	// No customer thread involved, so nothing to touch or create.
	require.Zero(t, f.contacts.created)
	require.Zero(t, f.conversations.created)
	require.Empty(t, f.conversations.touched)
}

// An unregistered number goes through the customer pipeline: contact and
// conversation are created, the concierge answers, the pair lands on the
// conversation, and last_message_at is bumped.
func TestProcess_CustomerMessage_NewContact(t *testing.T) {
	f := newFixture()

	err := f.processor.Process(context.Background(), f.inbound("5511988776655@s.whatsapp.net", "quanto custa o banho?"))
	require.NoError(t, err)

	require.Empty(t, f.aurora.calls)
	require.Len(t, f.concierge.calls, 1)
	require.Equal(t, "quanto custa o banho?", f.concierge.texts[0])
	require.Equal(t, "PetShop Alegria", f.concierge.calls[0].OrganizationName)

	require.Equal(t, 1, f.contacts.created)
	require.Equal(t, 1, f.conversations.created)

	contact := f.contacts.byPhone["5511988776655"]
	require.NotNil(t, contact)
	conversation := f.conversations.active[contact.ID]
	require.NotNil(t, conversation)

	require.Len(t, f.messages.created, 2)
	require.NotNil(t, f.messages.created[0].ConversationID)
	require.Equal(t, conversation.ID, *f.messages.created[0].ConversationID)
	require.Equal(t, conversation.ID, *f.messages.created[1].ConversationID)
	require.Equal(t, "concierge reply", f.messages.created[1].Body)

	require.Equal(t, []uuid.UUID{conversation.ID}, f.conversations.touched)
}

// A second message from the same customer reuses the contact and the active
// conversation, with no duplicates.
func TestProcess_CustomerMessage_ExistingConversation(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.processor.Process(context.Background(), f.inbound("5511988776655@s.whatsapp.net", "oi")))
	require.NoError(t, f.processor.Process(context.Background(), f.inbound("5511988776655@s.whatsapp.net", "tem horário amanhã?")))

	require.Equal(t, 1, f.contacts.created)
	require.Equal(t, 1, f.conversations.created)
	require.Len(t, f.messages.created, 4)
	require.Len(t, f.conversations.touched, 2)
}

// The same phone number is an owner only within its own organization;
// another tenant's job routes it to the customer pipeline.
func TestProcess_OwnerNumberScopedToOrganization(t *testing.T) {
	f := newFixture()
	f.registerOwner("5511999887766", "Marina")

	otherOrg := uuid.New()
	err := f.processor.Process(context.Background(), InboundMessage{
		OrganizationID: otherOrg.String(),
		InstanceID:     "inst1",
		From:           "5511999887766@s.whatsapp.net",
		Content:        "oi",
	})
	require.NoError(t, err)

	require.Empty(t, f.aurora.calls)
	require.Len(t, f.concierge.calls, 1)
}

// The concierge sees prior thread history oldest-first.
func TestProcess_CustomerHistoryChronological(t *testing.T) {
	f := newFixture()
	// ListByConversation returns newest first, as the store does.
	f.messages.history = []models.Message{
		{ID: 2, Direction: models.DirectionOutbound, Body: "R$ 60 para porte médio."},
		{ID: 1, Direction: models.DirectionInbound, Body: "quanto custa o banho?"},
	}

	require.NoError(t, f.processor.Process(context.Background(), f.inbound("5511988776655@s.whatsapp.net", "pode sexta?")))

	require.Len(t, f.concierge.calls, 1)
	history := f.concierge.calls[0].History
	require.Len(t, history, 2)
	require.Equal(t, int64(1), history[0].ID)
	require.Equal(t, int64(2), history[1].ID)
}

// A persona failure propagates as an error (the queue's retry signal) and
// nothing is persisted or delivered.
func TestProcess_PersonaErrorPropagates(t *testing.T) {
	f := newFixture()
	f.concierge.err = errors.New("provider down")
	f.concierge.reply = ""

	err := f.processor.Process(context.Background(), f.inbound("5511988776655@s.whatsapp.net", "oi"))
	require.Error(t, err)
	require.Empty(t, f.sender.sent)
	require.Empty(t, f.messages.created)
}

// A send failure after the persona answered also propagates; the pair is
// only written once delivery succeeded.
func TestProcess_SendErrorPropagates(t *testing.T) {
	f := newFixture()
	f.sender.err = errors.New("gateway unreachable")

	err := f.processor.Process(context.Background(), f.inbound("5511988776655@s.whatsapp.net", "oi"))
	require.Error(t, err)
	require.Empty(t, f.messages.created)
}

func TestProcess_InvalidOrganizationID(t *testing.T) {
	f := newFixture()

	err := f.processor.Process(context.Background(), InboundMessage{
		OrganizationID: "not-a-uuid",
		InstanceID:     "inst1",
		From:           "5511988776655@s.whatsapp.net",
		Content:        "oi",
	})
	require.Error(t, err)
}

// Persisted pairs are fanned out to the dashboard feed.
func TestProcess_PublishesToFeed(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.processor.Process(context.Background(), f.inbound("5511988776655@s.whatsapp.net", "oi")))
	require.Len(t, f.feed.published, 2)
}

// Handle decodes the queue envelope payload before processing.
func TestHandle_DecodesPayload(t *testing.T) {
	f := newFixture()
	f.registerOwner("5511999887766", "Marina")

	payload, err := json.Marshal(f.inbound("5511999887766@s.whatsapp.net", "oi"))
	require.NoError(t, err)

	err = f.processor.Handle(context.Background(), &queue.Job{
		ID:          "job-1",
		Queue:       queue.QueueMessages,
		Payload:     payload,
		MaxAttempts: 3,
	})
	require.NoError(t, err)
	require.Len(t, f.aurora.calls, 1)
}

func TestHandle_BadPayload(t *testing.T) {
	f := newFixture()

	err := f.processor.Handle(context.Background(), &queue.Job{
		ID:      "job-1",
		Queue:   queue.QueueMessages,
		Payload: json.RawMessage(`{broken`),
	})
	require.Error(t, err)
}
