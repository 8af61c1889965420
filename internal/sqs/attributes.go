package sqs

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// OJS message attribute names. SQS allows max 10 message attributes per message.
const (
	AttrOJSSpecVersion = "ojs.specversion"
	AttrOJSEventID     = "ojs.event_id"
	AttrOJSEventType   = "ojs.event_type"
	AttrOJSJobID       = "ojs.job_id"
	AttrOJSQueue       = "ojs.queue"
	AttrOJSCategory    = "ojs.category"
	AttrOJSAttempt     = "ojs.attempt"
	AttrOJSDeadLetter  = "ojs.dead_letter"
)

// BuildMessageAttributes creates SQS message attributes from a RetryEvent so
// consumers can filter without decoding the body.
func BuildMessageAttributes(event *core.RetryEvent) map[string]types.MessageAttributeValue {
	attrs := make(map[string]types.MessageAttributeValue)

	attrs[AttrOJSSpecVersion] = stringAttr(core.OJSVersion)
	attrs[AttrOJSEventID] = stringAttr(event.ID)
	attrs[AttrOJSEventType] = stringAttr(event.Type)
	attrs[AttrOJSJobID] = stringAttr(event.JobID)

	if event.Queue != "" {
		attrs[AttrOJSQueue] = stringAttr(event.Queue)
	}

	if category, ok := event.Metadata["category"].(string); ok && category != "" {
		attrs[AttrOJSCategory] = stringAttr(category)
	}

	if attempt, ok := event.Metadata["attempts_made"]; ok {
		attrs[AttrOJSAttempt] = types.MessageAttributeValue{
			DataType:    strPtr("Number"),
			StringValue: strPtr(fmt.Sprint(attempt)),
		}
	}

	if dl, ok := event.Metadata["move_to_dead_letter"].(bool); ok && dl {
		attrs[AttrOJSDeadLetter] = stringAttr("true")
	}

	return attrs
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    strPtr("String"),
		StringValue: strPtr(v),
	}
}

func strPtr(s string) *string {
	return &s
}
