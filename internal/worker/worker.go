// Package worker delivers receipt emails in the background so issuing a
// receipt never waits on SMTP.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nexustechhub/mdts/internal/email"
	"github.com/nexustechhub/mdts/internal/telemetry"
)

// JobTypeReceiptEmail labels receipt delivery jobs in logs and metrics.
const JobTypeReceiptEmail = "email:receipt"

// ErrQueueFull is returned when a job cannot be accepted without blocking.
var ErrQueueFull = errors.New("worker: job queue is full")

// ErrStopped is returned when a job is submitted after Start has returned.
var ErrStopped = errors.New("worker: stopped")

// ReceiptSender delivers a receipt email synchronously.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, data email.ReceiptEmail) error
}

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// QueueSize is how many jobs may wait for a free slot
	QueueSize int

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// MaxAttempts is how many times a job is tried before it is dropped
	MaxAttempts int

	// RetryBackoff is the wait before the second attempt. It doubles on
	// every further attempt.
	RetryBackoff time.Duration

	// JobTimeout bounds a single attempt
	JobTimeout time.Duration
}

// Job is a queued receipt delivery.
type Job struct {
	ID         string
	Type       string
	Email      email.ReceiptEmail
	EnqueuedAt time.Time
}

// Worker processes receipt deliveries from an in-memory queue.
type Worker struct {
	config Config
	sender ReceiptSender
	queue  chan Job
	logger *slog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewWorker creates a new background delivery worker
func NewWorker(sender ReceiptSender, config Config, logger *slog.Logger) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = "worker-" + ulid.Make().String()[:8]
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 2
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 2 * time.Second
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		config: config,
		sender: sender,
		queue:  make(chan Job, config.QueueSize),
		logger: logger.With("worker_id", config.WorkerID),
	}
}

// SendReceipt queues a receipt for delivery and returns immediately.
func (w *Worker) SendReceipt(ctx context.Context, data email.ReceiptEmail) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return ErrStopped
	}

	job := Job{
		ID:         ulid.Make().String(),
		Type:       JobTypeReceiptEmail,
		Email:      data,
		EnqueuedAt: time.Now(),
	}

	select {
	case w.queue <- job:
		w.recordDepth()
		w.logger.Debug("job queued", "job_id", job.ID, "receipt_id", data.ReceiptID)
		return nil
	default:
		w.record(job.Type, "dropped")
		return fmt.Errorf("%w: receipt %s", ErrQueueFull, data.ReceiptID)
	}
}

// Start processes jobs until ctx is cancelled, then waits for in-flight jobs
// to finish. Jobs still queued at that point are logged and dropped.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"queue_size", w.config.QueueSize,
		"max_concurrency", w.config.MaxConcurrency,
		"max_attempts", w.config.MaxAttempts,
	)

	// Semaphore for concurrency control
	sem := make(chan struct{}, w.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			return w.shutdown(ctx)

		case job := <-w.queue:
			w.recordDepth()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				w.logger.Warn("job dropped on shutdown", "job_id", job.ID, "receipt_id", job.Email.ReceiptID)
				w.record(job.Type, "dropped")
				return w.shutdown(ctx)
			}

			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer func() { <-sem }()
				w.process(ctx, job)
			}()
		}
	}
}

func (w *Worker) shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.logger.Info("worker shutting down")
	w.wg.Wait()

	for {
		select {
		case job := <-w.queue:
			w.logger.Warn("job dropped on shutdown", "job_id", job.ID, "receipt_id", job.Email.ReceiptID)
			w.record(job.Type, "dropped")
		default:
			w.recordDepth()
			return ctx.Err()
		}
	}
}

// process tries a job until it succeeds, runs out of attempts or ctx ends.
func (w *Worker) process(ctx context.Context, job Job) {
	logger := w.logger.With("job_id", job.ID, "job_type", job.Type, "receipt_id", job.Email.ReceiptID)
	backoff := w.config.RetryBackoff

	var err error
	for attempt := 1; attempt <= w.config.MaxAttempts; attempt++ {
		err = w.attempt(ctx, job)
		if err == nil {
			w.record(job.Type, "completed")
			logger.Info("job completed", "attempt", attempt, "queued_for", time.Since(job.EnqueuedAt))
			return
		}

		if attempt == w.config.MaxAttempts {
			break
		}

		w.record(job.Type, "retried")
		logger.Warn("job attempt failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			w.record(job.Type, "dropped")
			logger.Warn("job abandoned on shutdown", "attempt", attempt, "error", err)
			return
		}
		backoff *= 2
	}

	w.record(job.Type, "failed")
	logger.Error("job failed", "attempts", w.config.MaxAttempts, "error", err)
	telemetry.CaptureError(err, map[string]interface{}{
		"job_id":     job.ID,
		"job_type":   job.Type,
		"receipt_id": job.Email.ReceiptID,
	})
}

func (w *Worker) attempt(ctx context.Context, job Job) error {
	// In-flight sends outlive shutdown; JobTimeout bounds them.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.JobTimeout)
	defer cancel()
	return w.sender.SendReceipt(jobCtx, job.Email)
}

func (w *Worker) record(jobType, result string) {
	if telemetry.VAT != nil {
		telemetry.VAT.JobsProcessed.WithLabelValues(jobType, result).Inc()
	}
}

func (w *Worker) recordDepth() {
	if telemetry.VAT != nil {
		telemetry.VAT.QueueDepth.Set(float64(len(w.queue)))
	}
}
