package queue

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_Redelivery(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(time.Minute)

	require.NoError(t, q.Send(ctx, []byte("one")))
	depth, _ := q.Depth(ctx)
	assert.Equal(t, 1, depth)

	first, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, first[0].ReceiveCount)

	again, _ := q.Receive(ctx, 1)
	assert.Empty(t, again, "in-flight message must stay hidden")
	depth, _ = q.Depth(ctx)
	assert.Equal(t, 0, depth)

	q.Expire()
	second, _ := q.Receive(ctx, 1)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].ReceiveCount)
	assert.NotEqual(t, first[0].ReceiptHandle, second[0].ReceiptHandle)

	// A stale handle no longer deletes the message.
	require.NoError(t, q.Delete(ctx, first[0].ReceiptHandle))
	assert.Equal(t, 1, q.Len())
	require.NoError(t, q.Delete(ctx, second[0].ReceiptHandle))
	assert.Equal(t, 0, q.Len())
}

func TestNewFromConfig(t *testing.T) {
	q, err := NewFromConfig(context.Background(), Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryQueue{}, q)

	_, err = NewFromConfig(context.Background(), Config{Backend: "postgres"})
	assert.Error(t, err)

	_, err = NewFromConfig(context.Background(), Config{Backend: "kafka"})
	assert.Error(t, err)
}

func TestFromSQSMessage(t *testing.T) {
	msg := fromSQSMessage(types.Message{
		MessageId:     aws.String("m-1"),
		Body:          aws.String(`{"Type":"Notification"}`),
		ReceiptHandle: aws.String("rh"),
		Attributes: map[string]string{
			"ApproximateReceiveCount": "3",
			"SentTimestamp":           "1704067200000",
		},
	})
	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, "rh", msg.ReceiptHandle)
	assert.Equal(t, 3, msg.ReceiveCount)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), msg.SentAt)
	assert.Equal(t, `{"Type":"Notification"}`, string(msg.Body))
}
