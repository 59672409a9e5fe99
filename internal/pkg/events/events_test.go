package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kg-components/storefront/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	ev, err := New(OrderCreated, "0b7c6a1e", map[string]any{"total_amount": "60.00"})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, OrderCreated, ev.EventType)
	assert.Equal(t, 1, ev.EventVersion)
	assert.Equal(t, "storefront", ev.Producer)
	assert.Equal(t, "0b7c6a1e", ev.CorrelationID)
	assert.False(t, ev.OccurredAt.IsZero())
	assert.JSONEq(t, `{"total_amount":"60.00"}`, string(ev.Payload))
}

func TestNewEnvelopeRejectsBadPayload(t *testing.T) {
	_, err := New(OrderCreated, "x", make(chan int))
	assert.Error(t, err)
}

func TestEnvelopeWireFormat(t *testing.T) {
	ev, err := New(OrderStatusChanged, "abc", struct{}{})
	require.NoError(t, err)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, k := range []string{"event_id", "event_type", "event_version", "occurred_at", "producer", "correlation_id", "payload"} {
		assert.Contains(t, fields, k)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var p Publisher = &r

	a, _ := New(OrderCreated, "1", nil)
	b, _ := New(OrderInvoiceSent, "1", nil)
	p.Publish(context.Background(), a)
	p.Publish(context.Background(), b)

	assert.Equal(t, []string{OrderCreated, OrderInvoiceSent}, r.Types())
	assert.Len(t, r.Events(), 2)
}

func TestLogPublisher(t *testing.T) {
	var p Publisher = NewLogPublisher(logger.Discard())
	ev, _ := New(OrderPaymentConfirmed, "1", nil)
	assert.NotPanics(t, func() { p.Publish(context.Background(), ev) })
}
