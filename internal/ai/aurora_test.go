package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/petrelay/petrelay/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubContacts struct {
	count    int64
	inactive []models.Contact
}

func (s *stubContacts) Create(ctx context.Context, orgID uuid.UUID, phoneNumber, name string) (*models.Contact, error) {
	return nil, nil
}
func (s *stubContacts) GetByID(ctx context.Context, orgID, contactID uuid.UUID) (*models.Contact, error) {
	return nil, nil
}
func (s *stubContacts) GetByPhone(ctx context.Context, orgID uuid.UUID, phoneNumber string) (*models.Contact, error) {
	return nil, nil
}
func (s *stubContacts) FindOrCreate(ctx context.Context, orgID uuid.UUID, phoneNumber string) (*models.Contact, error) {
	return nil, nil
}
func (s *stubContacts) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Contact, error) {
	return nil, nil
}
func (s *stubContacts) ListInactiveSince(ctx context.Context, orgID uuid.UUID, cutoff time.Time, limit int) ([]models.Contact, error) {
	return s.inactive, nil
}
func (s *stubContacts) Count(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return s.count, nil
}

type stubConversations struct {
	active int64
}

func (s *stubConversations) FindOrCreateActive(ctx context.Context, orgID uuid.UUID, instanceID string, contactID uuid.UUID) (*models.Conversation, error) {
	return nil, nil
}
func (s *stubConversations) GetByID(ctx context.Context, orgID, conversationID uuid.UUID) (*models.Conversation, error) {
	return nil, nil
}
func (s *stubConversations) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Conversation, error) {
	return nil, nil
}
func (s *stubConversations) TouchLastMessage(ctx context.Context, orgID, conversationID uuid.UUID, at time.Time) error {
	return nil
}
func (s *stubConversations) CountActive(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return s.active, nil
}

type stubMessages struct {
	sinceCount int64
}

func (s *stubMessages) Create(ctx context.Context, orgID uuid.UUID, conversationID *uuid.UUID, direction, senderPhone, body string) (*models.Message, error) {
	return nil, nil
}
func (s *stubMessages) ListByConversation(ctx context.Context, orgID, conversationID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	return nil, nil
}
func (s *stubMessages) CountSince(ctx context.Context, orgID uuid.UUID, since time.Time) (int64, error) {
	return s.sinceCount, nil
}

// The owner persona does a completion with the function menu; when the model
// calls a function, the result is fed back in a second completion.
func TestAurora_ProcessOwnerMessage_ToolRoundTrip(t *testing.T) {
	var requests []chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		if len(requests) == 1 {
			w.Write([]byte(completionResponse(t, Message{
				Role: "assistant",
				ToolCalls: []ToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: ToolCallFunction{
						Name:      "get_business_analytics",
						Arguments: `{"days":7}`,
					},
				}},
			})))
			return
		}
		w.Write([]byte(completionResponse(t, Message{
			Role:    "assistant",
			Content: "You have 42 customers and 5 open conversations.",
		})))
	}))
	defer server.Close()

	aurora := NewAurora(
		newTestClient(server.URL),
		&stubContacts{count: 42},
		&stubConversations{active: 5},
		&stubMessages{sinceCount: 120},
		zap.NewNop(),
	)

	reply, err := aurora.ProcessOwnerMessage(context.Background(), OwnerContext{
		OrganizationID: uuid.New(),
		PhoneNumber:    "5511999887766",
		Name:           "Marina",
	}, "how is the shop doing?")
	require.NoError(t, err)
	require.Equal(t, "You have 42 customers and 5 open conversations.", reply)

	require.Len(t, requests, 2)
	// First call carries the function menu.
	require.Len(t, requests[0].Tools, 2)
	// Second call carries the tool result with the matching call id.
	last := requests[1].Messages[len(requests[1].Messages)-1]
	require.Equal(t, "tool", last.Role)
	require.Equal(t, "call_1", last.ToolCallID)
	require.Contains(t, last.Content, `"contacts":42`)
	require.Contains(t, last.Content, `"active_conversations":5`)
	// The follow-up must not offer the menu again: one tool round only.
	require.Empty(t, requests[1].Tools)
}

func TestAurora_ProcessOwnerMessage_DirectAnswer(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(completionResponse(t, Message{Role: "assistant", Content: "Good morning!"})))
	}))
	defer server.Close()

	aurora := NewAurora(newTestClient(server.URL), &stubContacts{}, &stubConversations{}, &stubMessages{}, zap.NewNop())

	reply, err := aurora.ProcessOwnerMessage(context.Background(), OwnerContext{OrganizationID: uuid.New()}, "bom dia")
	require.NoError(t, err)
	require.Equal(t, "Good morning!", reply)
	require.Equal(t, 1, calls)
}

func TestConcierge_ProcessMessage_HistoryRoles(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(completionResponse(t, Message{Role: "assistant", Content: "Totó is due for a bath on Friday."})))
	}))
	defer server.Close()

	concierge := NewConcierge(newTestClient(server.URL), zap.NewNop())

	reply, err := concierge.ProcessMessage(context.Background(), CustomerContext{
		OrganizationID:   uuid.New(),
		OrganizationName: "PetShop Alegria",
		ContactName:      "João",
		ContactPhone:     "5511988776655",
		History: []models.Message{
			{Direction: models.DirectionInbound, Body: "quanto custa o banho?"},
			{Direction: models.DirectionOutbound, Body: "R$ 60 para porte médio."},
		},
	}, "pode agendar pra sexta?")
	require.NoError(t, err)
	require.Equal(t, "Totó is due for a bath on Friday.", reply)

	// system + 2 history turns + current message, with directions mapped
	// to chat roles.
	require.Len(t, gotReq.Messages, 4)
	require.Equal(t, "system", gotReq.Messages[0].Role)
	require.Contains(t, gotReq.Messages[0].Content, "PetShop Alegria")
	require.Equal(t, "user", gotReq.Messages[1].Role)
	require.Equal(t, "assistant", gotReq.Messages[2].Role)
	require.Equal(t, "user", gotReq.Messages[3].Role)
	require.Equal(t, "pode agendar pra sexta?", gotReq.Messages[3].Content)
	require.Empty(t, gotReq.Tools)
}
