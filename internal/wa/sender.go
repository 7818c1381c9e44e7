package wa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// TextMessage is the outbound delivery request handed to the session
// gateway. Field names are the gateway's wire format.
type TextMessage struct {
	InstanceID     string `json:"instanceId"`
	To             string `json:"to"`
	Text           string `json:"text"`
	OrganizationID string `json:"organizationId"`
}

// Sender delivers a reply over WhatsApp. The session handling itself
// (pairing, socket, media) lives in a separate service; this side only
// posts a send request.
type Sender interface {
	SendText(ctx context.Context, msg TextMessage) error
}

// GatewaySender talks to the external WhatsApp session gateway over HTTP.
type GatewaySender struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewGatewaySender(baseURL, token string, logger *zap.Logger) *GatewaySender {
	return &GatewaySender{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

func (s *GatewaySender) SendText(ctx context.Context, msg TextMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages/send-text", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a little of the body for the log; gateway errors are terse.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Warn("gateway rejected send",
			zap.Int("status", resp.StatusCode),
			zap.String("instance_id", msg.InstanceID),
			zap.ByteString("body", snippet),
		)
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return nil
}
