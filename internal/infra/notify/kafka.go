package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bagsy/internal/app/policies"
	"bagsy/internal/domain/shared/events"
)

const (
	topicNotifications = "negotiation.notifications"
	topicEvents        = "negotiation.events"
)

// KafkaDispatcher publishes party notifications and domain events to Kafka.
// Delivery is at-least-once and the negotiation flow treats every publish as
// fire-and-forget.
type KafkaDispatcher struct {
	producer    sarama.SyncProducer
	topicPrefix string
	logger      *slog.Logger
}

func NewKafkaDispatcher(brokers []string, topicPrefix string, logger *slog.Logger) (*KafkaDispatcher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Net.MaxOpenRequests = 1
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaDispatcher{producer: producer, topicPrefix: topicPrefix, logger: logger}, nil
}

func (d *KafkaDispatcher) Close() error {
	if d.producer == nil {
		return nil
	}
	return d.producer.Close()
}

type notificationEnvelope struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	User          string `json:"user"`
	NegotiationID string `json:"negotiation_id"`
	Price         string `json:"price,omitempty"`
	Reasoning     string `json:"reasoning,omitempty"`
	At            string `json:"at"`
}

func (d *KafkaDispatcher) NotifyOffer(ctx context.Context, toUser string, negotiationID string, price decimal.Decimal, reasoning string) error {
	return d.sendNotification(notificationEnvelope{
		Kind:          "offer",
		User:          toUser,
		NegotiationID: negotiationID,
		Price:         price.StringFixed(2),
		Reasoning:     reasoning,
	})
}

func (d *KafkaDispatcher) NotifyAgreementReady(ctx context.Context, user string, negotiationID string) error {
	return d.sendNotification(notificationEnvelope{
		Kind:          "agreement_ready",
		User:          user,
		NegotiationID: negotiationID,
	})
}

func (d *KafkaDispatcher) NotifyRejection(ctx context.Context, user string, negotiationID string, reasoning string) error {
	return d.sendNotification(notificationEnvelope{
		Kind:          "rejection",
		User:          user,
		NegotiationID: negotiationID,
		Reasoning:     reasoning,
	})
}

func (d *KafkaDispatcher) sendNotification(envelope notificationEnvelope) error {
	envelope.ID = uuid.NewString()
	envelope.At = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: d.topic(topicNotifications),
		Key:   sarama.StringEncoder(envelope.NegotiationID),
		Value: sarama.ByteEncoder(payload),
	}
	_, _, err = d.producer.SendMessage(msg)
	return err
}

// PublishEvents emits domain events in a CloudEvents-style envelope, keyed by
// aggregate so per-negotiation ordering is preserved within a partition.
func (d *KafkaDispatcher) PublishEvents(ctx context.Context, evs []events.DomainEvent) error {
	for _, ev := range evs {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		envelope := map[string]any{
			"specversion":     "1.0",
			"id":              uuid.NewString(),
			"type":            ev.EventName() + ".v1",
			"source":          "bagsy/negotiation",
			"time":            ev.OccurredAt(),
			"datacontenttype": "application/json",
			"data":            json.RawMessage(data),
		}
		payload, err := json.Marshal(envelope)
		if err != nil {
			return err
		}
		msg := &sarama.ProducerMessage{
			Topic:   d.topic(topicEvents),
			Key:     sarama.StringEncoder(ev.AggregateID()),
			Value:   sarama.ByteEncoder(payload),
			Headers: []sarama.RecordHeader{{Key: []byte("content-type"), Value: []byte("application/cloudevents+json")}},
		}
		if _, _, err := d.producer.SendMessage(msg); err != nil {
			return err
		}
	}
	return nil
}

func (d *KafkaDispatcher) topic(name string) string {
	if d.topicPrefix == "" {
		return name
	}
	return d.topicPrefix + "." + name
}

var (
	_ policies.Notifier       = (*KafkaDispatcher)(nil)
	_ policies.EventPublisher = (*KafkaDispatcher)(nil)
)
