package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Named queues. Every job lives on exactly one of these Redis lists.
const (
	QueueMessages    = "messages"
	QueueCampaigns   = "campaigns"
	QueueAutomations = "automations"
	QueueDeadLetter  = "dead-letter"
)

// Names returns the known queues in display order, for the admin counts view.
func Names() []string {
	return []string{QueueMessages, QueueCampaigns, QueueAutomations, QueueDeadLetter}
}

// Job is the envelope pushed onto a queue list. Payload is the opaque
// application body; Attempts counts deliveries so far.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	EnqueuedAt  time.Time       `json:"enqueuedAt"`
}

// DeadLetter is the record written when a job exhausts its attempts. Field
// names match the queue wire format consumed by the admin tooling.
type DeadLetter struct {
	OriginalQueue  string          `json:"originalQueue"`
	OriginalJobID  string          `json:"originalJobId"`
	OriginalData   json.RawMessage `json:"originalData"`
	Error          string          `json:"error"`
	Timestamp      int64           `json:"timestamp"`
	OrganizationID string          `json:"organizationId"`
}

// Manager owns the Redis connection and the enqueue/inspect operations.
// Constructed once in main and passed to whoever needs it; no package-level
// singletons.
type Manager struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewManager(ctx context.Context, redisURL string, logger *zap.Logger) (*Manager, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis connection established", zap.String("addr", opt.Addr))
	return &Manager{rdb: rdb, logger: logger}, nil
}

func (m *Manager) Close() error {
	return m.rdb.Close()
}

func queueKey(name string) string {
	return "petrelay:queue:" + name
}

// Enqueue wraps the payload in a fresh envelope and pushes it. Delivery is
// at-least-once: a job that fails is pushed back until MaxAttempts is spent.
func (m *Manager) Enqueue(ctx context.Context, queueName string, payload any, maxAttempts int) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	job := Job{
		ID:          uuid.NewString(),
		Queue:       queueName,
		Payload:     body,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}
	if err := m.push(ctx, &job); err != nil {
		return "", err
	}

	m.logger.Debug("job enqueued",
		zap.String("queue", queueName),
		zap.String("job_id", job.ID),
	)
	return job.ID, nil
}

// push LPUSHes an existing envelope (fresh or retried) onto its queue.
func (m *Manager) push(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := m.rdb.LPush(ctx, queueKey(job.Queue), data).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", job.Queue, err)
	}
	return nil
}

// pop blocks up to timeout waiting for the next job on the queue.
// Returns nil, nil when the wait times out with nothing to do.
func (m *Manager) pop(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	res, err := m.rdb.BRPop(ctx, timeout, queueKey(queueName)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("brpop %s: %w", queueName, err)
	}
	// BRPOP returns [key, value].
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Counts returns the pending-job count per known queue.
func (m *Manager) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(Names()))
	for _, name := range Names() {
		n, err := m.rdb.LLen(ctx, queueKey(name)).Result()
		if err != nil {
			return nil, fmt.Errorf("llen %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}

// PushDeadLetter copies an exhausted job into the dead-letter list for
// manual inspection. Nothing reprocesses it automatically.
func (m *Manager) PushDeadLetter(ctx context.Context, dl DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if err := m.rdb.LPush(ctx, queueKey(QueueDeadLetter), data).Err(); err != nil {
		return fmt.Errorf("lpush dead letter: %w", err)
	}
	return nil
}

// DeadLetters returns up to limit entries, newest first.
func (m *Manager) DeadLetters(ctx context.Context, limit int64) ([]DeadLetter, error) {
	raw, err := m.rdb.LRange(ctx, queueKey(QueueDeadLetter), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange dead letter: %w", err)
	}

	letters := make([]DeadLetter, 0, len(raw))
	for _, item := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(item), &dl); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		letters = append(letters, dl)
	}
	return letters, nil
}

// RetryDeadLetter removes one entry by original job id and re-enqueues its
// payload onto the original queue as a fresh job (full attempt budget).
// This is the manual replay path; there is no automatic one.
func (m *Manager) RetryDeadLetter(ctx context.Context, originalJobID string, maxAttempts int) error {
	raw, err := m.rdb.LRange(ctx, queueKey(QueueDeadLetter), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("lrange dead letter: %w", err)
	}

	for _, item := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(item), &dl); err != nil {
			continue
		}
		if dl.OriginalJobID != originalJobID {
			continue
		}
		if err := m.rdb.LRem(ctx, queueKey(QueueDeadLetter), 1, item).Err(); err != nil {
			return fmt.Errorf("lrem dead letter: %w", err)
		}
		if _, err := m.Enqueue(ctx, dl.OriginalQueue, json.RawMessage(dl.OriginalData), maxAttempts); err != nil {
			return fmt.Errorf("re-enqueue dead letter: %w", err)
		}
		m.logger.Info("dead letter re-enqueued",
			zap.String("queue", dl.OriginalQueue),
			zap.String("original_job_id", originalJobID),
		)
		return nil
	}
	return fmt.Errorf("dead letter %s not found", originalJobID)
}
