package queue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{name: "first retry", attempt: 1, expected: 1 * time.Second},
		{name: "second retry", attempt: 2, expected: 2 * time.Second},
		{name: "third retry", attempt: 3, expected: 4 * time.Second},
		{name: "sixth retry", attempt: 6, expected: 30 * time.Second},
		{name: "capped at max interval", attempt: 10, expected: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, RetryDelay(tt.attempt))
		})
	}
}

func TestFailureOutcome_RetryWhileBudgetRemains(t *testing.T) {
	job := &Job{
		ID:          "job-1",
		Queue:       QueueMessages,
		Payload:     json.RawMessage(`{"organizationId":"org1"}`),
		Attempts:    1,
		MaxAttempts: 3,
	}

	_, exhausted := failureOutcome(job, errors.New("db down"), time.Now())
	require.False(t, exhausted)

	job.Attempts = 2
	_, exhausted = failureOutcome(job, errors.New("db down"), time.Now())
	require.False(t, exhausted)
}

func TestFailureOutcome_DeadLetterOnFinalAttempt(t *testing.T) {
	payload := json.RawMessage(`{"organizationId":"org1","instanceId":"inst1","from":"5511999887766@s.whatsapp.net","content":"oi"}`)
	job := &Job{
		ID:          "job-1",
		Queue:       QueueMessages,
		Payload:     payload,
		Attempts:    3,
		MaxAttempts: 3,
	}
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	dl, exhausted := failureOutcome(job, errors.New("persona timeout"), now)
	require.True(t, exhausted)
	require.Equal(t, QueueMessages, dl.OriginalQueue)
	require.Equal(t, "job-1", dl.OriginalJobID)
	require.JSONEq(t, string(payload), string(dl.OriginalData))
	require.Equal(t, "persona timeout", dl.Error)
	require.Equal(t, now.UnixMilli(), dl.Timestamp)
	require.Equal(t, "org1", dl.OrganizationID)
}

func TestPayloadOrganizationID(t *testing.T) {
	require.Equal(t, "org1", payloadOrganizationID(json.RawMessage(`{"organizationId":"org1","content":"oi"}`)))
	require.Equal(t, "", payloadOrganizationID(json.RawMessage(`{"content":"oi"}`)))
	require.Equal(t, "", payloadOrganizationID(json.RawMessage(`not json`)))
}
