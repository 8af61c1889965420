package sqs

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQS queue naming convention:
//   {prefix}-retry-events       -- standard queue
//   {prefix}-retry-events.fifo  -- FIFO queue variant

const eventQueueSuffix = "retry-events"

// queueName returns the SQS queue name retry events are sent to.
func (p *Publisher) queueName() string {
	name := sanitizeQueueName(p.queuePrefix) + "-" + eventQueueSuffix
	if p.useFIFO {
		name += ".fifo"
	}
	return name
}

// sanitizeQueueName converts a name to an SQS-compatible one.
// SQS allows alphanumeric, hyphens, and underscores (and .fifo suffix).
func sanitizeQueueName(name string) string {
	return strings.ReplaceAll(name, ".", "-")
}

// getOrCreateQueueURL returns the cached queue URL, looking the queue up or
// creating it on first use.
func (p *Publisher) getOrCreateQueueURL(ctx context.Context) (string, error) {
	// Check cache first
	p.queueURLMu.RLock()
	if p.queueURL != "" {
		url := p.queueURL
		p.queueURLMu.RUnlock()
		return url, nil
	}
	p.queueURLMu.RUnlock()

	sqsName := p.queueName()
	var url string
	result, err := p.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(sqsName),
	})
	if err == nil {
		url = aws.ToString(result.QueueUrl)
	} else {
		attrs := map[string]string{
			"MessageRetentionPeriod": "1209600", // 14 days
		}
		if p.useFIFO {
			attrs["FifoQueue"] = "true"
			attrs["ContentBasedDeduplication"] = "true"
		}
		created, createErr := p.client.CreateQueue(ctx, &sqs.CreateQueueInput{
			QueueName:  aws.String(sqsName),
			Attributes: attrs,
		})
		if createErr != nil {
			return "", fmt.Errorf("create SQS queue %s: %w", sqsName, createErr)
		}
		url = aws.ToString(created.QueueUrl)
	}

	// Cache the URL
	p.queueURLMu.Lock()
	p.queueURL = url
	p.queueURLMu.Unlock()

	return url, nil
}
