package infra

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Event types published to the stock topic.
const (
	EventStockOperationExecuted = "stock.operation.executed"
	EventStockLow               = "stock.low"
	EventBatchExpiring          = "batch.expiring"
	EventSaleCompleted          = "sale.completed"
	EventSaleCancelled          = "sale.cancelled"
)

// Event is the envelope written to the broker.
type Event struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewEvent(eventType string, payload interface{}) Event {
	return Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher delivers domain events. key selects the partition so events for
// the same aggregate stay ordered.
type Publisher interface {
	Publish(ctx context.Context, key string, ev Event) error
	Close() error
}

// ── Kafka ─────────────────────────────────────────────────────────────────────

type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a writer for a comma separated broker list.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	addrs := strings.Split(brokers, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// ── Guarded ───────────────────────────────────────────────────────────────────

// GuardedPublisher routes every publish through a circuit breaker.
type GuardedPublisher struct {
	inner Publisher
	cb    *CircuitBreaker
}

func NewGuardedPublisher(inner Publisher, cb *CircuitBreaker) *GuardedPublisher {
	return &GuardedPublisher{inner: inner, cb: cb}
}

func (g *GuardedPublisher) Publish(ctx context.Context, key string, ev Event) error {
	return g.cb.Execute(func() error {
		return g.inner.Publish(ctx, key, ev)
	})
}

func (g *GuardedPublisher) Close() error { return g.inner.Close() }

// Breaker exposes the breaker for health reporting.
func (g *GuardedPublisher) Breaker() *CircuitBreaker { return g.cb }

// ── Noop ──────────────────────────────────────────────────────────────────────

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, key string, ev Event) error {
	log.Debug().Str("event_type", ev.EventType).Str("key", key).Msg("event dropped: no broker configured")
	return nil
}

func (NoopPublisher) Close() error { return nil }

// PublishBestEffort publishes and logs failures. Events describe work that has
// already committed, so a broker outage must not surface to the caller.
func PublishBestEffort(ctx context.Context, p Publisher, key string, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, key, ev); err != nil {
		log.Warn().Err(err).Str("event_type", ev.EventType).Str("key", key).Msg("event publish failed")
	}
}
