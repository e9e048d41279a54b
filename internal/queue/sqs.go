package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQS caps a single ReceiveMessage call at ten messages.
const sqsMaxReceive = 10

type SQSConfig struct {
	QueueURL          string
	Region            string
	Endpoint          string
	VisibilityTimeout time.Duration
}

type SQSQueue struct {
	client     *sqs.Client
	queueURL   string
	visibility int32
}

func NewSQSQueue(ctx context.Context, cfg SQSConfig) (*SQSQueue, error) {
	cfg.QueueURL = strings.TrimSpace(cfg.QueueURL)
	if cfg.QueueURL == "" {
		return nil, errors.New("sqs queue url is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(cfg.Region); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &SQSQueue{
		client:     client,
		queueURL:   cfg.QueueURL,
		visibility: int32(cfg.VisibilityTimeout / time.Second),
	}, nil
}

func (q *SQSQueue) Send(ctx context.Context, body []byte) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	return err
}

func (q *SQSQueue) Receive(ctx context.Context, max int) ([]models.QueueMessage, error) {
	if max <= 0 {
		max = 1
	}
	if max > sqsMaxReceive {
		max = sqsMaxReceive
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(max),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
			types.MessageSystemAttributeNameSentTimestamp,
		},
	}
	if q.visibility > 0 {
		input.VisibilityTimeout = q.visibility
	}

	out, err := q.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, err
	}

	messages := make([]models.QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, fromSQSMessage(m))
	}
	return messages, nil
}

func fromSQSMessage(m types.Message) models.QueueMessage {
	msg := models.QueueMessage{
		ID:            aws.ToString(m.MessageId),
		Body:          []byte(aws.ToString(m.Body)),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
	}
	if v, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		msg.ReceiveCount, _ = strconv.Atoi(v)
	}
	if v, ok := m.Attributes[string(types.MessageSystemAttributeNameSentTimestamp)]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			msg.SentAt = time.UnixMilli(ms).UTC()
		}
	}
	return msg
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return err
}

func (q *SQSQueue) Depth(ctx context.Context) (int, error) {
	out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, err
	}
	v := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse queue depth %q: %w", v, err)
	}
	return n, nil
}
