// Package kafka publishes order events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/kg-components/storefront/internal/pkg/events"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Producer buffers events and writes them from a single goroutine.
// Messages are keyed by order id so one order's events stay ordered.
type Producer struct {
	w     *kafka.Writer
	inbox chan kafka.Message
	done  chan struct{}
	log   logrus.FieldLogger

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewProducer creates a producer for topic. Start must be called before Publish.
func NewProducer(brokers []string, topic string, buf int, log logrus.FieldLogger) *Producer {
	if buf <= 0 {
		buf = 256
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
		log:   log.WithFields(logrus.Fields{"component": "kafka", "topic": topic}),
	}
}

// Start runs the write loop until Close is called
func (p *Producer) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	go func() {
		defer close(p.done)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.log.WithError(err).WithField("key", string(m.Key)).Error("failed to publish event")
			}
		}
		if err := p.w.Close(); err != nil {
			p.log.WithError(err).Warn("failed to close kafka writer")
		}
	}()
}

// Publish implements events.Publisher. A full buffer or a closed producer
// drops the event.
func (p *Producer) Publish(ctx context.Context, ev events.Envelope) {
	value, err := json.Marshal(ev)
	if err != nil {
		p.log.WithError(err).Error("failed to encode event")
		return
	}

	m := kafka.Message{
		Key:   []byte(ev.CorrelationID),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(ev.EventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(ev.EventVersion))},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.WithField("event_type", ev.EventType).Warn("producer closed, dropping event")
		return
	}
	select {
	case p.inbox <- m:
	default:
		p.log.WithField("event_type", ev.EventType).Warn("event buffer full, dropping event")
	}
}

// Close flushes buffered events and waits for the writer to shut down.
// It is safe to call more than once.
func (p *Producer) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	started := p.started
	p.mu.Unlock()

	if started {
		<-p.done
	}
}
