// Package queue defines the at-least-once message queue feeding the ingest
// workers and selects its backend.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/store/postgres"
)

// Queue delivers each message at least once. A received message is hidden
// until its visibility timeout passes and comes back with a higher
// ReceiveCount unless it is deleted first.
type Queue interface {
	Receive(ctx context.Context, max int) ([]models.QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
	Send(ctx context.Context, body []byte) error
	// Depth is the approximate number of messages available to Receive.
	Depth(ctx context.Context) (int, error)
}

type Config struct {
	Backend           string
	VisibilityTimeout time.Duration
	DB                *sql.DB
	SQSQueueURL       string
	AWSRegion         string
	SQSEndpoint       string
}

func NewFromConfig(ctx context.Context, cfg Config) (Queue, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "postgres"
	}

	switch backend {
	case "postgres":
		if cfg.DB == nil {
			return nil, errors.New("postgres queue requires a database")
		}
		return postgres.NewQueue(cfg.DB, cfg.VisibilityTimeout), nil
	case "sqs":
		return NewSQSQueue(ctx, SQSConfig{
			QueueURL:          cfg.SQSQueueURL,
			Region:            cfg.AWSRegion,
			Endpoint:          cfg.SQSEndpoint,
			VisibilityTimeout: cfg.VisibilityTimeout,
		})
	case "memory":
		return NewMemoryQueue(cfg.VisibilityTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", backend)
	}
}
