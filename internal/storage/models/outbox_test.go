package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutboxMessage(t *testing.T) {
	msg, err := NewOutboxMessage("u-1", EventTypeResumeParsed, "resume.events.exchange", "resume.parsed",
		map[string]any{"submission_uuid": "u-1"})
	require.NoError(t, err)
	assert.Equal(t, OutboxStatusPending, msg.Status)
	assert.JSONEq(t, `{"submission_uuid":"u-1"}`, msg.Payload)
	assert.Equal(t, "resume.parsed", msg.TargetRoutingKey)

	_, err = NewOutboxMessage("u-1", EventTypeResumeParsed, "x", "y", make(chan int))
	assert.Error(t, err)
}

func TestOutboxMessage_MarkPublished(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := &OutboxMessage{Status: OutboxStatusPending}

	msg.MarkPublished(errors.New("nack"), now, 2)
	assert.Equal(t, OutboxStatusPending, msg.Status)
	assert.Equal(t, 1, msg.RetryCount)
	assert.Equal(t, "nack", msg.ErrorMessage)

	msg.MarkPublished(errors.New("nack"), now, 2)
	assert.Equal(t, OutboxStatusFailed, msg.Status, "达到最大次数后标记失败")

	ok := &OutboxMessage{Status: OutboxStatusPending, ErrorMessage: "old"}
	ok.MarkPublished(nil, now, 2)
	assert.Equal(t, OutboxStatusSent, ok.Status)
	require.NotNil(t, ok.ProcessedAt)
	assert.Equal(t, now, *ok.ProcessedAt)
	assert.Empty(t, ok.ErrorMessage)
}
