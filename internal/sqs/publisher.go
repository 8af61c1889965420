// Package sqs delivers retry lifecycle events: to an AWS SQS queue for
// downstream consumers, and to in-process subscribers for the SSE stream.
package sqs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// Publisher implements core.EventPublisher by sending each event as an SQS
// message.
type Publisher struct {
	client      *sqs.Client
	queuePrefix string
	useFIFO     bool
	logger      *slog.Logger

	queueURL   string // cache
	queueURLMu sync.RWMutex
}

// NewPublisher creates a Publisher sending to <queuePrefix>-retry-events.
func NewPublisher(client *sqs.Client, queuePrefix string, useFIFO bool) *Publisher {
	return &Publisher{
		client:      client,
		queuePrefix: queuePrefix,
		useFIFO:     useFIFO,
		logger:      slog.Default(),
	}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

// PublishRetryEvent sends event to the retry events queue.
func (p *Publisher) PublishRetryEvent(ctx context.Context, event *core.RetryEvent) error {
	queueURL, err := p.getOrCreateQueueURL(ctx)
	if err != nil {
		return err
	}

	body, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueURL),
		MessageBody:       aws.String(body),
		MessageAttributes: BuildMessageAttributes(event),
	}

	// For FIFO queues, events of one job stay ordered
	if p.useFIFO {
		input.MessageGroupId = aws.String(event.JobID)
		input.MessageDeduplicationId = aws.String(event.ID)
	}

	result, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("SQS SendMessage: %w", err)
	}

	p.logger.Debug("retry event published",
		"event", event.Type,
		"job_id", event.JobID,
		"message_id", aws.ToString(result.MessageId),
	)
	return nil
}

// Ping checks that SQS is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	_, err := p.client.ListQueues(ctx, &sqs.ListQueuesInput{
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("failed to ping SQS: %w", err)
	}
	return nil
}
