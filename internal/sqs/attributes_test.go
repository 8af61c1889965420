package sqs

import (
	"testing"
	"time"

	"github.com/openjobspec/ojs-retry/internal/core"
)

func testEvent() *core.RetryEvent {
	failure := &core.JobFailure{JobID: "job-123", Queue: "default", AttemptsMade: 2}
	decision := core.RetryDecision{
		ShouldRetry: true,
		DelayMs:     4000,
		Category:    "network_timeout",
		Reason:      "retrying after network_timeout error (attempt 3/5)",
		Outcome:     core.OutcomeRetry,
	}
	return core.NewRetryEvent(failure, decision, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestBuildMessageAttributes_RequiredFields(t *testing.T) {
	event := testEvent()
	attrs := BuildMessageAttributes(event)

	tests := []struct {
		key      string
		expected string
	}{
		{AttrOJSSpecVersion, core.OJSVersion},
		{AttrOJSEventID, event.ID},
		{AttrOJSEventType, core.EventRetryScheduled},
		{AttrOJSJobID, "job-123"},
		{AttrOJSQueue, "default"},
		{AttrOJSCategory, "network_timeout"},
		{AttrOJSAttempt, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			attr, ok := attrs[tt.key]
			if !ok {
				t.Fatalf("missing attribute %q", tt.key)
			}
			if *attr.StringValue != tt.expected {
				t.Errorf("attribute %q = %q, want %q", tt.key, *attr.StringValue, tt.expected)
			}
		})
	}

	if *attrs[AttrOJSAttempt].DataType != "Number" {
		t.Errorf("attempt DataType = %q, want %q", *attrs[AttrOJSAttempt].DataType, "Number")
	}
	if _, ok := attrs[AttrOJSDeadLetter]; ok {
		t.Error("expected no dead letter attribute for a scheduled retry")
	}
}

func TestBuildMessageAttributes_DeadLetter(t *testing.T) {
	failure := &core.JobFailure{JobID: "job-123", AttemptsMade: 0}
	decision := core.RetryDecision{Category: "auth_error", MoveToDeadLetter: true, Outcome: core.OutcomeAbandoned}
	event := core.NewRetryEvent(failure, decision, time.Now())

	attrs := BuildMessageAttributes(event)

	if _, ok := attrs[AttrOJSQueue]; ok {
		t.Error("expected no queue attribute for an empty queue")
	}
	attr, ok := attrs[AttrOJSDeadLetter]
	if !ok || *attr.StringValue != "true" {
		t.Errorf("dead letter attribute = %v, want true", attr.StringValue)
	}
	if *attrs[AttrOJSEventType].StringValue != core.EventRetryAbandoned {
		t.Errorf("event type = %q, want %q", *attrs[AttrOJSEventType].StringValue, core.EventRetryAbandoned)
	}
}

func TestBuildMessageAttributes_WithinSQSLimit(t *testing.T) {
	attrs := BuildMessageAttributes(testEvent())
	if len(attrs) > 10 {
		t.Errorf("got %d attributes, SQS allows at most 10", len(attrs))
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	event := testEvent()

	body, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeEvent(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.ID != event.ID || decoded.Type != event.Type || decoded.JobID != event.JobID {
		t.Errorf("decoded = %+v, want %+v", decoded, event)
	}
	if decoded.Metadata["category"] != "network_timeout" {
		t.Errorf("category = %v", decoded.Metadata["category"])
	}
	// JSON numbers decode as float64
	if decoded.Metadata["delay_ms"] != float64(4000) {
		t.Errorf("delay_ms = %v", decoded.Metadata["delay_ms"])
	}
}

func TestEncodeEvent_TooLarge(t *testing.T) {
	event := testEvent()
	event.Metadata["reason"] = string(make([]byte, MaxSQSMessageSize))

	_, err := EncodeEvent(event)
	if err == nil {
		t.Fatal("expected size error")
	}
	ojsErr, ok := err.(*core.OJSError)
	if !ok {
		t.Fatalf("expected *core.OJSError, got %T", err)
	}
	if ojsErr.Code != core.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", ojsErr.Code, core.ErrCodeInvalidRequest)
	}
}

func TestDecodeEvent_Invalid(t *testing.T) {
	if _, err := DecodeEvent("{not json"); err == nil {
		t.Fatal("expected error")
	}
}
