package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/petrelay/petrelay/internal/repository"
	"go.uber.org/zap"
)

const auroraSystemPrompt = `You are Aurora, the business assistant of a pet-care company. ` +
	`You chat over WhatsApp with the owner and staff of the business. ` +
	`Answer questions about the operation: customer activity, message volume, quiet customers. ` +
	`Use the available functions when the question needs live numbers. ` +
	`Be direct and keep answers short; this is a phone chat, not a report.`

// OwnerContext identifies the staff member Aurora is talking to.
type OwnerContext struct {
	OrganizationID uuid.UUID
	PhoneNumber    string
	Name           string
}

// Aurora is the owner-facing persona: one completion with a small function
// menu, and when the model calls a function, one follow-up completion with
// the function result. At most one tool round per message.
type Aurora struct {
	client        *Client
	contacts      repository.ContactRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	logger        *zap.Logger
}

func NewAurora(
	client *Client,
	contacts repository.ContactRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	logger *zap.Logger,
) *Aurora {
	return &Aurora{
		client:        client,
		contacts:      contacts,
		conversations: conversations,
		messages:      messages,
		logger:        logger,
	}
}

func auroraTools() []Tool {
	return []Tool{
		{
			Type: "function",
			Function: ToolFunction{
				Name:        "get_business_analytics",
				Description: "Current counts for the business: total contacts, active conversations, and messages exchanged in the last N days.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"days": map[string]any{
							"type":        "integer",
							"description": "Window in days for the message count. Default 7.",
						},
					},
				},
			},
		},
		{
			Type: "function",
			Function: ToolFunction{
				Name:        "list_inactive_customers",
				Description: "Customers with no conversation activity in the last N days.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"days": map[string]any{
							"type":        "integer",
							"description": "Inactivity threshold in days. Default 30.",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum customers to return. Default 10.",
						},
					},
				},
			},
		},
	}
}

// ProcessOwnerMessage answers one staff message and returns the reply text.
func (a *Aurora) ProcessOwnerMessage(ctx context.Context, octx OwnerContext, text string) (string, error) {
	system := auroraSystemPrompt
	if octx.Name != "" {
		system += fmt.Sprintf(" You are talking to %s.", octx.Name)
	}

	messages := []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: text},
	}

	reply, err := a.client.Chat(ctx, messages, auroraTools())
	if err != nil {
		return "", fmt.Errorf("aurora completion: %w", err)
	}

	if len(reply.ToolCalls) == 0 {
		return reply.Content, nil
	}

	// Function-calling round trip: execute the first requested tool, feed
	// the result back, and let the model phrase the answer.
	call := reply.ToolCalls[0]
	result, err := a.executeTool(ctx, octx.OrganizationID, call)
	if err != nil {
		return "", fmt.Errorf("aurora tool %s: %w", call.Function.Name, err)
	}

	messages = append(messages, *reply, Message{
		Role:       "tool",
		ToolCallID: call.ID,
		Content:    result,
	})

	final, err := a.client.Chat(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("aurora follow-up completion: %w", err)
	}
	return final.Content, nil
}

func (a *Aurora) executeTool(ctx context.Context, orgID uuid.UUID, call ToolCall) (string, error) {
	var args struct {
		Days  int `json:"days"`
		Limit int `json:"limit"`
	}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return "", fmt.Errorf("decode arguments: %w", err)
		}
	}

	switch call.Function.Name {
	case "get_business_analytics":
		if args.Days <= 0 {
			args.Days = 7
		}
		return a.businessAnalytics(ctx, orgID, args.Days)
	case "list_inactive_customers":
		if args.Days <= 0 {
			args.Days = 30
		}
		if args.Limit <= 0 {
			args.Limit = 10
		}
		return a.inactiveCustomers(ctx, orgID, args.Days, args.Limit)
	default:
		return "", fmt.Errorf("unknown tool %q", call.Function.Name)
	}
}

func (a *Aurora) businessAnalytics(ctx context.Context, orgID uuid.UUID, days int) (string, error) {
	contacts, err := a.contacts.Count(ctx, orgID)
	if err != nil {
		return "", err
	}
	active, err := a.conversations.CountActive(ctx, orgID)
	if err != nil {
		return "", err
	}
	since := time.Now().AddDate(0, 0, -days)
	msgs, err := a.messages.CountSince(ctx, orgID, since)
	if err != nil {
		return "", err
	}

	result, err := json.Marshal(map[string]any{
		"contacts":             contacts,
		"active_conversations": active,
		"messages_last_days":   msgs,
		"window_days":          days,
	})
	if err != nil {
		return "", fmt.Errorf("marshal analytics: %w", err)
	}
	a.logger.Debug("aurora analytics tool",
		zap.String("organization_id", orgID.String()),
		zap.Int("days", days),
	)
	return string(result), nil
}

func (a *Aurora) inactiveCustomers(ctx context.Context, orgID uuid.UUID, days, limit int) (string, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	contacts, err := a.contacts.ListInactiveSince(ctx, orgID, cutoff, limit)
	if err != nil {
		return "", err
	}

	type entry struct {
		Name        string `json:"name"`
		PhoneNumber string `json:"phone_number"`
	}
	entries := make([]entry, 0, len(contacts))
	for _, c := range contacts {
		entries = append(entries, entry{Name: c.Name, PhoneNumber: c.PhoneNumber})
	}

	result, err := json.Marshal(map[string]any{
		"inactive_days": days,
		"customers":     entries,
	})
	if err != nil {
		return "", fmt.Errorf("marshal inactive customers: %w", err)
	}
	return string(result), nil
}
