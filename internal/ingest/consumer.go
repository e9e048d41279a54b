package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/amekkawi/arq-console/internal/queue"
	"github.com/amekkawi/arq-console/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

type ConsumerOptions struct {
	MaxWorkers    int
	MaxWorkerTime time.Duration
	PollInterval  time.Duration
}

// Consumer sizes the number of concurrent drains to the queue depth.
type Consumer struct {
	queue         queue.Queue
	worker        *Worker
	maxWorkers    int
	maxWorkerTime time.Duration
	pollInterval  time.Duration
}

func NewConsumer(q queue.Queue, worker *Worker, opts ConsumerOptions) *Consumer {
	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	maxTime := opts.MaxWorkerTime
	if maxTime <= 0 {
		maxTime = 60 * time.Second
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Consumer{
		queue:         q,
		worker:        worker,
		maxWorkers:    maxWorkers,
		maxWorkerTime: maxTime,
		pollInterval:  poll,
	}
}

// Run starts min(depth, MaxWorkers) drains, each with a MaxWorkerTime
// budget, and waits for all of them.
func (c *Consumer) Run(ctx context.Context) (DrainStats, error) {
	var total DrainStats

	depth, err := c.queue.Depth(ctx)
	if err != nil {
		return total, err
	}
	telemetry.QueueDepth.Set(float64(depth))

	n := min(depth, c.maxWorkers)
	if n <= 0 {
		return total, nil
	}

	deadline := time.Now().Add(c.maxWorkerTime)
	remaining := func() time.Duration { return time.Until(deadline) }

	results := make([]DrainStats, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			stats, err := c.worker.Drain(ctx, remaining)
			results[i] = stats
			return err
		})
	}
	err = g.Wait()

	for _, r := range results {
		total.Add(r)
	}
	return total, err
}

// Start calls Run on every poll interval until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		stats, err := c.Run(ctx)
		if err != nil {
			slog.Error("ingest consumer cycle failed", "error", err)
		}
		if stats.Received > 0 {
			slog.Info("ingest consumer cycle finished",
				"received", stats.Received, "ingested", stats.Ingested,
				"dropped", stats.Dropped, "poisoned", stats.Poisoned, "retried", stats.Retried)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
