package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/queue"
)

type countingProcessor struct {
	mu    sync.Mutex
	calls int
}

func (p *countingProcessor) Ingest(_ context.Context, _ models.QueueMessage) (*models.BackupResultMeta, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return nil, nil
}

func TestConsumerRun_DrainsQueue(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(time.Minute)
	for i := 0; i < 7; i++ {
		if err := q.Send(ctx, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}
	p := &countingProcessor{}
	c := NewConsumer(q, NewWorker(q, p), ConsumerOptions{MaxWorkers: 3, MaxWorkerTime: time.Minute})

	stats, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Received != 7 || stats.Ingested != 7 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if p.calls != 7 {
		t.Fatalf("expected 7 ingests, got %d", p.calls)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestConsumerRun_EmptyQueue(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	p := &countingProcessor{}
	c := NewConsumer(q, NewWorker(q, p), ConsumerOptions{})

	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (DrainStats{}) {
		t.Fatalf("expected no work, got %+v", stats)
	}
}

func TestConsumerRun_ShortBudgetStartsNothing(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(time.Minute)
	_ = q.Send(ctx, []byte("{}"))
	p := &countingProcessor{}
	c := NewConsumer(q, NewWorker(q, p), ConsumerOptions{MaxWorkerTime: time.Second})

	if _, err := c.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("expected no ingests under the minimum budget, got %d", p.calls)
	}
}
