// Package events describes the order events published after a commit.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	OrderCreated          = "order.created"
	OrderStatusChanged    = "order.status_changed"
	OrderInvoiceSent      = "order.invoice_sent"
	OrderPaymentConfirmed = "order.payment_confirmed"
)

const producerName = "storefront"

// Envelope wraps every event payload
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// New builds an envelope for an order event. The order id is the correlation id.
func New(eventType, orderID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producerName,
		CorrelationID: orderID,
		Payload:       raw,
	}, nil
}

// Publisher delivers events. Publishing never blocks a committed write:
// implementations report delivery problems through their own logging.
type Publisher interface {
	Publish(ctx context.Context, ev Envelope)
}

// LogPublisher writes events to the log. Used when no brokers are configured.
type LogPublisher struct {
	log logrus.FieldLogger
}

// NewLogPublisher creates a logging publisher
func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log.WithField("component", "events")}
}

// Publish implements Publisher
func (p *LogPublisher) Publish(ctx context.Context, ev Envelope) {
	p.log.WithFields(logrus.Fields{
		"event_id":   ev.EventID,
		"event_type": ev.EventType,
		"order_id":   ev.CorrelationID,
	}).Info("order event")
}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

// Publish implements Publisher
func (r *Recorder) Publish(ctx context.Context, ev Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns the recorded events
func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.events...)
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}
