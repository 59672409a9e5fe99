package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kg-components/storefront/internal/pkg/events"
	"github.com/kg-components/storefront/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishBuildsKeyedMessage(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "storefront.orders", 4, logger.Discard())

	ev, err := events.New(events.OrderCreated, "order-1", map[string]string{"status": "pending"})
	require.NoError(t, err)
	p.Publish(context.Background(), ev)

	require.Len(t, p.inbox, 1)
	m := <-p.inbox
	assert.Equal(t, "order-1", string(m.Key))
	assert.Equal(t, ev.OccurredAt, m.Time)

	headers := map[string]string{}
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, events.OrderCreated, headers["x-event-type"])
	assert.Equal(t, "1", headers["x-event-version"])

	var decoded events.Envelope
	require.NoError(t, json.Unmarshal(m.Value, &decoded))
	assert.Equal(t, ev.EventID, decoded.EventID)
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "storefront.orders", 2, logger.Discard())

	for i := 0; i < 5; i++ {
		ev, _ := events.New(events.OrderStatusChanged, "order-1", nil)
		p.Publish(context.Background(), ev)
	}
	assert.Len(t, p.inbox, 2)
}

func TestWriterConfiguration(t *testing.T) {
	p := NewProducer([]string{"a:9092", "b:9092"}, "storefront.orders", 0, logger.Discard())
	assert.Equal(t, "storefront.orders", p.w.Topic)
	assert.Equal(t, 256, cap(p.inbox))
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "storefront.orders", 4, logger.Discard())
	p.Close()
	p.Close()

	ev, err := events.New(events.OrderCreated, "order-1", nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() { p.Publish(context.Background(), ev) })
	assert.Empty(t, p.inbox)
}
