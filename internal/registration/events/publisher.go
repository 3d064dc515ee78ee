// Package events publishes registration.created notifications after a
// registration commits. Delivery is best-effort: a failed publish is logged by
// the caller and never undoes the registration.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"eventreg/internal/registration/models"
)

// TypeRegistrationCreated is the only event type emitted.
const TypeRegistrationCreated = "registration.created"

// Event is the published payload. It carries identifiers only; attendee
// details stay in the store.
type Event struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewCreated builds the event for a committed registration.
func NewCreated(r *models.Registration) Event {
	return Event{
		Type:      TypeRegistrationCreated,
		ID:        r.ID,
		Sequence:  r.Sequence,
		CreatedAt: r.CreatedAt,
	}
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// KafkaPublisher produces events with franz-go, keyed by registration ID.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects a producer to brokers.
func NewKafkaPublisher(brokers []string, topic string, opts ...kgo.Opt) (*KafkaPublisher, error) {
	all := append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	}, opts...)
	client, err := kgo.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

// Publish produces e synchronously and waits for the broker ack.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.ID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", e.Type, err)
	}
	return nil
}

// EnsureTopic creates the topic with broker-default partitions and
// replication when it does not exist yet.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context) error {
	resp, err := kadm.NewClient(p.client).CreateTopic(ctx, -1, -1, nil, p.topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	return nil
}

// Ping checks broker connectivity.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes pending records and closes the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
