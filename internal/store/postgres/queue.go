package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
)

// Queue is a message queue on the ingest_queue table. Received messages
// become invisible for the visibility timeout and reappear unless deleted,
// mirroring SQS redelivery.
type Queue struct {
	db                *sql.DB
	visibilityTimeout time.Duration
}

func NewQueue(db *sql.DB, visibilityTimeout time.Duration) *Queue {
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	return &Queue{db: db, visibilityTimeout: visibilityTimeout}
}

func (q *Queue) Send(ctx context.Context, body []byte) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO ingest_queue (body) VALUES ($1)`, body)
	return err
}

func (q *Queue) Receive(ctx context.Context, max int) ([]models.QueueMessage, error) {
	if max <= 0 {
		max = 1
	}
	rows, err := q.db.QueryContext(ctx,
		`WITH next_message AS (
			SELECT id
			FROM ingest_queue
			WHERE visible_at <= NOW()
			ORDER BY id ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE ingest_queue m
		SET receive_count = m.receive_count + 1,
			receipt_handle = gen_random_uuid()::text,
			visible_at = NOW() + make_interval(secs => $2)
		FROM next_message
		WHERE m.id = next_message.id
		RETURNING m.id, m.body, m.receipt_handle, m.receive_count, m.sent_at`,
		max, q.visibilityTimeout.Seconds(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.QueueMessage
	for rows.Next() {
		var (
			id  int64
			msg models.QueueMessage
		)
		if err := rows.Scan(&id, &msg.Body, &msg.ReceiptHandle, &msg.ReceiveCount, &msg.SentAt); err != nil {
			return nil, err
		}
		msg.ID = strconv.FormatInt(id, 10)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Delete removes a message by its latest receipt handle. A stale handle from
// an earlier receive matches nothing.
func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM ingest_queue WHERE receipt_handle = $1`, receiptHandle)
	return err
}

func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingest_queue WHERE visible_at <= NOW()`).Scan(&n)
	return n, err
}
