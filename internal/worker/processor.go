// Package worker routes inbound WhatsApp messages: staff numbers go to the
// Aurora business assistant, everyone else to the customer concierge.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/petrelay/petrelay/internal/ai"
	"github.com/petrelay/petrelay/internal/models"
	"github.com/petrelay/petrelay/internal/queue"
	"github.com/petrelay/petrelay/internal/repository"
	"github.com/petrelay/petrelay/internal/wa"
	"go.uber.org/zap"
)

// InboundMessage is the message-queue payload, enqueued by the session
// gateway webhook. From is the raw WhatsApp JID.
type InboundMessage struct {
	OrganizationID string `json:"organizationId"`
	InstanceID     string `json:"instanceId"`
	From           string `json:"from"`
	Content        string `json:"content"`
}

// How much conversation history the concierge sees per reply.
const historyLimit = 20

// OwnerPersona answers staff messages (Aurora).
type OwnerPersona interface {
	ProcessOwnerMessage(ctx context.Context, octx ai.OwnerContext, text string) (string, error)
}

// CustomerPersona answers customer messages (Concierge).
type CustomerPersona interface {
	ProcessMessage(ctx context.Context, cctx ai.CustomerContext, text string) (string, error)
}

// Publisher pushes persisted messages to the live dashboard feed.
type Publisher interface {
	PublishMessage(orgID uuid.UUID, msg models.Message)
}

// Processor handles one inbound message end to end. Any returned error is a
// retry signal for the queue worker; the retry policy itself lives there,
// not here.
type Processor struct {
	organizations repository.OrganizationRepository
	owners        repository.OwnerNumberRepository
	contacts      repository.ContactRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	aurora        OwnerPersona
	concierge     CustomerPersona
	sender        wa.Sender
	feed          Publisher
	logger        *zap.Logger
}

func NewProcessor(
	organizations repository.OrganizationRepository,
	owners repository.OwnerNumberRepository,
	contacts repository.ContactRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	aurora OwnerPersona,
	concierge CustomerPersona,
	sender wa.Sender,
	feed Publisher,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		organizations: organizations,
		owners:        owners,
		contacts:      contacts,
		conversations: conversations,
		messages:      messages,
		aurora:        aurora,
		concierge:     concierge,
		sender:        sender,
		feed:          feed,
		logger:        logger,
	}
}

// Handle adapts Process to the queue.Handler contract.
func (p *Processor) Handle(ctx context.Context, job *queue.Job) error {
	var in InboundMessage
	if err := json.Unmarshal(job.Payload, &in); err != nil {
		return fmt.Errorf("decode inbound payload: %w", err)
	}
	return p.Process(ctx, in)
}

// Process classifies the sender and runs the matching pipeline.
//
// Known gap: the payload carries no stable provider message id, so a job
// redelivered after a crash between the send and the final persist can be
// answered twice. Deduplication needs an idempotency key from the session
// gateway first.
func (p *Processor) Process(ctx context.Context, in InboundMessage) error {
	orgID, err := uuid.Parse(in.OrganizationID)
	if err != nil {
		return fmt.Errorf("parse organization id %q: %w", in.OrganizationID, err)
	}
	phone := wa.BarePhone(in.From)

	isOwner, err := p.owners.IsActiveOwner(ctx, orgID, phone)
	if err != nil {
		return fmt.Errorf("classify sender: %w", err)
	}

	if isOwner {
		return p.processOwner(ctx, orgID, in, phone)
	}
	return p.processCustomer(ctx, orgID, in, phone)
}

// processOwner runs the staff pipeline: Aurora reply, delivery, and the
// message pair persisted without a conversation; staff chats live outside
// customer threads.
func (p *Processor) processOwner(ctx context.Context, orgID uuid.UUID, in InboundMessage, phone string) error {
	octx := ai.OwnerContext{
		OrganizationID: orgID,
		PhoneNumber:    phone,
	}
	if owner, err := p.owners.GetActiveByPhone(ctx, orgID, phone); err == nil && owner != nil {
		octx.Name = owner.Name
	}

	reply, err := p.aurora.ProcessOwnerMessage(ctx, octx, in.Content)
	if err != nil {
		return fmt.Errorf("owner persona: %w", err)
	}

	if err := p.sender.SendText(ctx, wa.TextMessage{
		InstanceID:     in.InstanceID,
		To:             in.From,
		Text:           reply,
		OrganizationID: in.OrganizationID,
	}); err != nil {
		return fmt.Errorf("send owner reply: %w", err)
	}

	if err := p.persistPair(ctx, orgID, nil, phone, in.Content, reply); err != nil {
		return err
	}

	p.logger.Info("owner message processed",
		zap.String("organization_id", in.OrganizationID),
		zap.String("phone", phone),
	)
	return nil
}

// processCustomer runs the customer pipeline: find-or-create contact and
// active conversation, concierge reply with thread history, delivery,
// persistence, and the last_message_at bump.
func (p *Processor) processCustomer(ctx context.Context, orgID uuid.UUID, in InboundMessage, phone string) error {
	contact, err := p.contacts.FindOrCreate(ctx, orgID, phone)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}

	conversation, err := p.conversations.FindOrCreateActive(ctx, orgID, in.InstanceID, contact.ID)
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}

	history, err := p.messages.ListByConversation(ctx, orgID, conversation.ID, 0, historyLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	cctx := ai.CustomerContext{
		OrganizationID: orgID,
		ContactName:    contact.Name,
		ContactPhone:   phone,
		History:        chronological(history),
	}
	if org, err := p.organizations.GetByID(ctx, orgID); err == nil && org != nil {
		cctx.OrganizationName = org.Name
	}

	reply, err := p.concierge.ProcessMessage(ctx, cctx, in.Content)
	if err != nil {
		return fmt.Errorf("customer persona: %w", err)
	}

	if err := p.sender.SendText(ctx, wa.TextMessage{
		InstanceID:     in.InstanceID,
		To:             in.From,
		Text:           reply,
		OrganizationID: in.OrganizationID,
	}); err != nil {
		return fmt.Errorf("send customer reply: %w", err)
	}

	if err := p.persistPair(ctx, orgID, &conversation.ID, phone, in.Content, reply); err != nil {
		return err
	}

	if err := p.conversations.TouchLastMessage(ctx, orgID, conversation.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	p.logger.Info("customer message processed",
		zap.String("organization_id", in.OrganizationID),
		zap.String("phone", phone),
		zap.String("conversation_id", conversation.ID.String()),
	)
	return nil
}

// persistPair appends the inbound message and the generated reply. Messages
// are always written as a pair, after the reply went out.
func (p *Processor) persistPair(ctx context.Context, orgID uuid.UUID, conversationID *uuid.UUID, phone, inbound, outbound string) error {
	inMsg, err := p.messages.Create(ctx, orgID, conversationID, models.DirectionInbound, phone, inbound)
	if err != nil {
		return fmt.Errorf("persist inbound message: %w", err)
	}
	outMsg, err := p.messages.Create(ctx, orgID, conversationID, models.DirectionOutbound, phone, outbound)
	if err != nil {
		return fmt.Errorf("persist outbound message: %w", err)
	}

	if p.feed != nil {
		p.feed.PublishMessage(orgID, *inMsg)
		p.feed.PublishMessage(orgID, *outMsg)
	}
	return nil
}

// chronological flips a newest-first page into oldest-first for the prompt.
func chronological(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}
