package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// OutboxSource supplies pending outbox entries and records their delivery.
type OutboxSource interface {
	NextBatch(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
}

// Producer delivers an outbox payload to the downstream sink.
type Producer interface {
	Produce(ctx context.Context, key string, payload []byte) error
}

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Worker relays outbox entries to the audit sink. Entries are produced in
// creation order and marked only after a successful publish, so a sink
// outage replays from where it stopped.
type Worker struct {
	source   OutboxSource
	producer Producer
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

type WorkerOption func(w *Worker)

func WithPollInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) {
		w.interval = interval
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(source OutboxSource, producer Producer, opts ...WorkerOption) *Worker {
	w := &Worker{
		source:   source,
		producer: producer,
		interval: defaultPollInterval,
		batch:    defaultBatchSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls the outbox until the context is cancelled. Publish failures are
// logged and retried on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.publishPending(ctx); err != nil {
				w.logger.ErrorContext(ctx, "audit outbox publish failed", "error", err)
			}
		}
	}
}

func (w *Worker) publishPending(ctx context.Context) error {
	entries, err := w.source.NextBatch(ctx, w.batch)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := w.producer.Produce(ctx, entry.AggregateID, entry.Payload); err != nil {
			return err
		}
		if err := w.source.MarkPublished(ctx, entry.ID); err != nil {
			return err
		}
	}
	return nil
}
