// Package ingest drains the delivery queue: each message is verified,
// parsed, stored exactly once and acknowledged.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/queue"
	"github.com/amekkawi/arq-console/internal/telemetry"
)

const (
	// MinimumRemaining is the time budget required to start another message.
	MinimumRemaining = 4000 * time.Millisecond
	// PoisonReceiveCount is the delivery attempt at which any failure drops
	// the message.
	PoisonReceiveCount = 5
)

type Processor interface {
	Ingest(ctx context.Context, msg models.QueueMessage) (*models.BackupResultMeta, error)
}

type DrainStats struct {
	Received int
	Ingested int
	Dropped  int
	Poisoned int
	Retried  int
}

func (s *DrainStats) Add(o DrainStats) {
	s.Received += o.Received
	s.Ingested += o.Ingested
	s.Dropped += o.Dropped
	s.Poisoned += o.Poisoned
	s.Retried += o.Retried
}

// Worker processes queue messages one at a time. It holds no per-drain
// state, so one Worker may drain from several goroutines.
type Worker struct {
	queue     queue.Queue
	processor Processor
}

func NewWorker(q queue.Queue, processor Processor) *Worker {
	return &Worker{queue: q, processor: processor}
}

// Drain receives and processes messages until the queue is empty or
// remaining drops below MinimumRemaining. The budget and ctx are only
// checked between messages.
func (w *Worker) Drain(ctx context.Context, remaining func() time.Duration) (DrainStats, error) {
	var stats DrainStats
	for {
		if left := remaining(); left < MinimumRemaining {
			slog.Debug("ingest worker out of time", "remaining", left)
			return stats, nil
		}
		if ctx.Err() != nil {
			return stats, nil
		}

		messages, err := w.queue.Receive(ctx, 1)
		if err != nil {
			return stats, fmt.Errorf("receive: %w", err)
		}
		if len(messages) == 0 {
			return stats, nil
		}

		stats.Received++
		w.process(ctx, messages[0], &stats)
	}
}

func (w *Worker) process(ctx context.Context, msg models.QueueMessage, stats *DrainStats) {
	log := slog.With("ingest_id", msg.ID, "receive_count", msg.ReceiveCount, "queued_at", msg.SentAt)

	start := time.Now()
	meta, err := w.processor.Ingest(ctx, msg)
	if meta != nil {
		log = log.With("backup_id", meta.BackupID, "client_id", meta.ClientID)
		telemetry.IngestDuration.WithLabelValues(meta.DeliveryType).Observe(time.Since(start).Seconds())
	}

	switch {
	case err == nil:
		stats.Ingested++
		telemetry.IngestMessagesTotal.WithLabelValues(telemetry.OutcomeIngested).Inc()
		log.Info("backup result ingested")
	case IsPermanent(err):
		stats.Dropped++
		telemetry.IngestMessagesTotal.WithLabelValues(telemetry.OutcomeDropped).Inc()
		log.Warn("dropping message", "error", err)
	case msg.ReceiveCount >= PoisonReceiveCount:
		stats.Poisoned++
		telemetry.IngestMessagesTotal.WithLabelValues(telemetry.OutcomePoisoned).Inc()
		log.Error("dropping poison message", "error", err)
	default:
		stats.Retried++
		telemetry.IngestMessagesTotal.WithLabelValues(telemetry.OutcomeRetried).Inc()
		log.Error("ingest failed, leaving message for redelivery", "error", err)
		return
	}

	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		log.Error("failed to delete message", "error", err)
	}
}
