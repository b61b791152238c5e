// Package notifications provides the SQS-based producer for outbound
// notification messages. The actual email/SMS transport lives in a
// downstream worker; this service only guarantees the enqueue.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"jobboard/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueueNotifier publishes NotificationMessages to the notification queue.
// It satisfies the webhooks.Notifier interface.
type QueueNotifier struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewQueueNotifier creates a QueueNotifier for the given queue URL.
func NewQueueNotifier(client SQSSender, queueURL string, logger *slog.Logger) *QueueNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueNotifier{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Enqueue serializes the message and dispatches it to the notification
// queue. The message id doubles as a deduplication handle for the
// consumer.
func (n *QueueNotifier) Enqueue(ctx context.Context, msg types.NotificationMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notifications: failed to marshal message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Kind),
			},
		},
	}

	if _, err := n.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("notifications: failed to send message to %s: %w", n.queueURL, err)
	}

	n.logger.InfoContext(ctx, "notification message sent",
		"queue_url", n.queueURL,
		"message_id", msg.ID,
		"kind", msg.Kind,
		"payment_id", msg.PaymentID,
		"order_id", msg.OrderID,
	)

	return nil
}
