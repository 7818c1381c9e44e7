package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Handler processes one job. A non-nil error is the retry signal: the worker
// re-enqueues the job until its attempt budget is spent, then copies it to
// the dead-letter queue. Handlers never see the retry policy.
type Handler func(ctx context.Context, job *Job) error

// WorkerConfig is static tuning, set once at construction. The message queue
// runs 5 concurrent consumers at 10 jobs per second, not adaptive.
type WorkerConfig struct {
	Queue       string
	Concurrency int
	RatePerSec  int
}

// Worker is a fixed-size consumer pool over one queue. Constructed in main
// and started with Run; it drains when the context is cancelled.
type Worker struct {
	manager *Manager
	cfg     WorkerConfig
	handler Handler
	logger  *zap.Logger
}

func NewWorker(manager *Manager, cfg WorkerConfig, handler Handler, logger *zap.Logger) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.RatePerSec < 1 {
		cfg.RatePerSec = 1
	}
	return &Worker{
		manager: manager,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With(zap.String("queue", cfg.Queue)),
	}
}

// Run blocks until ctx is cancelled and all consumers have drained.
func (w *Worker) Run(ctx context.Context) {
	// One ticker shared by all consumers caps the pool's total dispatch
	// rate: each tick releases exactly one BRPOP.
	interval := time.Second / time.Duration(w.cfg.RatePerSec)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(consumer int) {
			defer wg.Done()
			w.consume(ctx, consumer, ticker.C)
		}(i)
	}

	w.logger.Info("worker pool started",
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Int("rate_per_sec", w.cfg.RatePerSec),
	)
	wg.Wait()
	w.logger.Info("worker pool stopped")
}

func (w *Worker) consume(ctx context.Context, consumer int, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
		}

		job, err := w.manager.pop(ctx, w.cfg.Queue, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, consumer, job)
	}
}

// process runs the handler once and applies the failure policy: re-enqueue
// with a backoff delay, or dead-letter when attempts are exhausted.
//
// Known gap: there is no idempotency key on the payload, so a job redelivered
// after a crash mid-handler can be answered twice. The provider does not give
// us a stable message id to dedup on.
func (w *Worker) process(ctx context.Context, consumer int, job *Job) {
	job.Attempts++

	err := w.handler(ctx, job)
	if err == nil {
		w.logger.Debug("job processed",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempts),
		)
		return
	}

	w.logger.Warn("job failed",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempts),
		zap.Int("max_attempts", job.MaxAttempts),
		zap.Int("consumer", consumer),
		zap.Error(err),
	)

	if dl, exhausted := failureOutcome(job, err, time.Now()); exhausted {
		if dlErr := w.manager.PushDeadLetter(ctx, dl); dlErr != nil {
			w.logger.Error("dead letter push failed",
				zap.String("job_id", job.ID),
				zap.Error(dlErr),
			)
		}
		return
	}

	// Wait out the backoff in this consumer slot, then push the job back.
	delay := RetryDelay(job.Attempts)
	select {
	case <-ctx.Done():
		// Shutting down: skip the delay so the job isn't lost.
	case <-time.After(delay):
	}
	if pushErr := w.manager.push(context.WithoutCancel(ctx), job); pushErr != nil {
		w.logger.Error("re-enqueue failed",
			zap.String("job_id", job.ID),
			zap.Error(pushErr),
		)
	}
}

// failureOutcome decides what happens to a failed job: a dead-letter record
// once the attempt budget is spent, otherwise a retry.
func failureOutcome(job *Job, err error, now time.Time) (DeadLetter, bool) {
	if job.Attempts < job.MaxAttempts {
		return DeadLetter{}, false
	}
	return DeadLetter{
		OriginalQueue:  job.Queue,
		OriginalJobID:  job.ID,
		OriginalData:   job.Payload,
		Error:          err.Error(),
		Timestamp:      now.UnixMilli(),
		OrganizationID: payloadOrganizationID(job.Payload),
	}, true
}

// RetryDelay returns the wait before delivery attempt+1. Exponential,
// deterministic (no jitter), capped at 30s: 1s, 2s, 4s, ...
func RetryDelay(attempt int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second

	delay := bo.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = bo.NextBackOff()
	}
	return delay
}

// payloadOrganizationID pulls organizationId out of an arbitrary payload for
// the dead-letter record. Empty when the payload has no such field.
func payloadOrganizationID(payload json.RawMessage) string {
	var probe struct {
		OrganizationID string `json:"organizationId"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.OrganizationID
}
