package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/google/uuid"
)

type memoryMessage struct {
	msg       models.QueueMessage
	visibleAt time.Time
}

// MemoryQueue is an in-process Queue with the same visibility and receive
// count behaviour as the real backends.
type MemoryQueue struct {
	mu         sync.Mutex
	messages   []*memoryMessage
	nextID     int
	visibility time.Duration
	now        func() time.Time
}

func NewMemoryQueue(visibilityTimeout time.Duration) *MemoryQueue {
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	return &MemoryQueue{visibility: visibilityTimeout, now: time.Now}
}

func (q *MemoryQueue) Send(_ context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	now := q.now()
	q.messages = append(q.messages, &memoryMessage{
		msg: models.QueueMessage{
			ID:     strconv.Itoa(q.nextID),
			Body:   append([]byte(nil), body...),
			SentAt: now.UTC(),
		},
		visibleAt: now,
	})
	return nil
}

func (q *MemoryQueue) Receive(_ context.Context, max int) ([]models.QueueMessage, error) {
	if max <= 0 {
		max = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var out []models.QueueMessage
	for _, m := range q.messages {
		if len(out) == max {
			break
		}
		if m.visibleAt.After(now) {
			continue
		}
		m.msg.ReceiveCount++
		m.msg.ReceiptHandle = uuid.NewString()
		m.visibleAt = now.Add(q.visibility)
		out = append(out, m.msg)
	}
	return out, nil
}

func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, m := range q.messages {
		if m.msg.ReceiptHandle == receiptHandle {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *MemoryQueue) Depth(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	n := 0
	for _, m := range q.messages {
		if !m.visibleAt.After(now) {
			n++
		}
	}
	return n, nil
}

// Len returns every message still held, visible or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Expire makes every in-flight message visible again.
func (q *MemoryQueue) Expire() {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for _, m := range q.messages {
		m.visibleAt = now
	}
}
