package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

func TestEventCodecRoundTrip(t *testing.T) {
	event := domain.ExportEvent{
		ID:            "evt-1",
		SessionID:     "s-1",
		Filename:      "grant_application_s-1.txt",
		Format:        domain.ExportText,
		Determination: domain.DeterminationConditional,
		CreatedAt:     time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	body, err := encodeEvent(event)
	require.NoError(t, err)

	got, err := decodeEvent(body)
	require.NoError(t, err)
	event.Type = domain.EventApplicationExported
	assert.Equal(t, event, got)
}

func TestEncodeRejectsIncompleteEvent(t *testing.T) {
	_, err := encodeEvent(domain.ExportEvent{ID: "evt-1"})
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestDecodeRejectsForeignMessages(t *testing.T) {
	_, err := decodeEvent([]byte(`{"type":"document.ingested","id":"1","session_id":"s"}`))
	assert.ErrorContains(t, err, "unexpected event type")

	_, err = decodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestClassifyNATSError(t *testing.T) {
	assert.True(t, classifyNATSError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)).Retryable)
	assert.False(t, classifyNATSError(context.Canceled).RecordFailure)
	assert.False(t, classifyNATSError(nats.ErrMaxPayload).Retryable)
	assert.False(t, classifyNATSError(errors.New("boom")).Retryable)
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	assert.True(t, domain.IsKind(wrapTemporaryIfNeeded(nats.ErrNoServers), domain.ErrTemporary))
	assert.True(t, domain.IsKind(wrapTemporaryIfNeeded(gobreaker.ErrOpenState), domain.ErrTemporary))
	assert.False(t, domain.IsKind(wrapTemporaryIfNeeded(errors.New("boom")), domain.ErrTemporary))
	assert.NoError(t, wrapTemporaryIfNeeded(nil))
}
