package sqs

import (
	"encoding/json"
	"fmt"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// MaxSQSMessageSize is the maximum SQS message size (256 KB).
const MaxSQSMessageSize = 256 * 1024

// EncodeEvent serializes a RetryEvent to JSON for the SQS message body.
// Returns an error if the encoded event exceeds 256KB.
func EncodeEvent(event *core.RetryEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal retry event: %w", err)
	}

	if len(data) > MaxSQSMessageSize {
		return "", &core.OJSError{
			Code:    core.ErrCodeInvalidRequest,
			Message: fmt.Sprintf("Retry event size (%d bytes) exceeds SQS maximum of %d bytes.", len(data), MaxSQSMessageSize),
			Details: map[string]any{
				"payload_size": len(data),
				"max_size":     MaxSQSMessageSize,
				"job_id":       event.JobID,
			},
		}
	}

	return string(data), nil
}

// DecodeEvent deserializes a RetryEvent from an SQS message body.
func DecodeEvent(body string) (*core.RetryEvent, error) {
	var event core.RetryEvent
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		return nil, fmt.Errorf("unmarshal retry event: %w", err)
	}
	return &event, nil
}
