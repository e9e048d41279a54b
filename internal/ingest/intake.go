package ingest

import (
	"context"
	"fmt"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/queue"
	"github.com/google/uuid"
)

type ContentSaver interface {
	SaveReceived(ctx context.Context, backupID string, body []byte) error
}

// Intake is the producer side used by the ingress adapters: it stores the
// delivered content and then queues its envelope.
type Intake struct {
	content ContentSaver
	queue   queue.Queue
	channel string
}

func NewIntake(content ContentSaver, q queue.Queue, channel string) *Intake {
	return &Intake{content: content, queue: q, channel: channel}
}

func (in *Intake) SubmitEmail(ctx context.Context, messageID string, recipients []string, raw []byte) error {
	backupID := models.DeliveryTypeEmail + "/" + messageID
	if err := in.content.SaveReceived(ctx, backupID, raw); err != nil {
		return err
	}
	body, err := NewEmailEnvelope(in.channel, messageID, recipients)
	if err != nil {
		return fmt.Errorf("build email envelope: %w", err)
	}
	if err := in.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("enqueue %s: %w", backupID, err)
	}
	return nil
}

// SubmitHTTPPost assigns a delivery id and returns the resulting backup id.
func (in *Intake) SubmitHTTPPost(ctx context.Context, backupType, clientID, clientKey string, body []byte) (string, error) {
	deliveryID := uuid.NewString()
	backupID := models.DeliveryTypeHTTP + "/" + deliveryID
	if err := in.content.SaveReceived(ctx, backupID, body); err != nil {
		return "", err
	}
	env, err := NewHTTPPostEnvelope(in.channel, deliveryID, backupType, clientID, clientKey)
	if err != nil {
		return "", fmt.Errorf("build http envelope: %w", err)
	}
	if err := in.queue.Send(ctx, env); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", backupID, err)
	}
	return backupID, nil
}
