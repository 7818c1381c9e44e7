package ai

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/petrelay/petrelay/internal/models"
	"go.uber.org/zap"
)

const conciergeSystemPrompt = `You are the WhatsApp assistant of a pet-care business ` +
	`(petshop, veterinary clinic, daycare and hotel). You talk to customers about their ` +
	`pets, services, opening hours and appointments. Be warm but brief; answers go ` +
	`out as WhatsApp messages. If you don't know something about this specific business, ` +
	`say a member of the team will follow up, never invent details.`

// CustomerContext carries the resolved conversation state into the persona.
// History is chronological (oldest first) and does not include the message
// being answered.
type CustomerContext struct {
	OrganizationID   uuid.UUID
	OrganizationName string
	ContactName      string
	ContactPhone     string
	History          []models.Message
}

// Concierge is the customer-facing persona: a single completion with the
// conversation history as context. No function menu; customer questions are
// answered from the prompt alone.
type Concierge struct {
	client *Client
	logger *zap.Logger
}

func NewConcierge(client *Client, logger *zap.Logger) *Concierge {
	return &Concierge{client: client, logger: logger}
}

// ProcessMessage answers one customer message and returns the reply text.
func (c *Concierge) ProcessMessage(ctx context.Context, cctx CustomerContext, text string) (string, error) {
	system := conciergeSystemPrompt
	if cctx.OrganizationName != "" {
		system += fmt.Sprintf(" The business is called %q.", cctx.OrganizationName)
	}
	if cctx.ContactName != "" {
		system += fmt.Sprintf(" The customer's name is %s.", cctx.ContactName)
	}

	messages := make([]Message, 0, len(cctx.History)+2)
	messages = append(messages, Message{Role: "system", Content: system})
	for _, m := range cctx.History {
		role := "user"
		if m.Direction == models.DirectionOutbound {
			role = "assistant"
		}
		messages = append(messages, Message{Role: role, Content: m.Body})
	}
	messages = append(messages, Message{Role: "user", Content: text})

	reply, err := c.client.Chat(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("concierge completion: %w", err)
	}

	c.logger.Debug("concierge reply",
		zap.String("organization_id", cctx.OrganizationID.String()),
		zap.String("contact_phone", cctx.ContactPhone),
		zap.Int("history_len", len(cctx.History)),
	)
	return reply.Content, nil
}
