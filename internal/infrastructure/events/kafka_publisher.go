// Package events publishes offer lifecycle events.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	domainservice "github.com/damon-houk/insurance-offer-system/internal/domain/service"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
	json "github.com/goccy/go-json"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	// SchemaVersion is bumped on incompatible payload changes
	SchemaVersion = 1

	// PublishTimeout bounds a single synchronous produce
	PublishTimeout = 3 * time.Second

	EventTypeHeaderKey = "x-event-type"
)

// Message is the wire payload written to the lifecycle topic
type Message struct {
	SchemaVersion int `json:"schema_version"`
	entity.OfferEvent
}

// KafkaPublisher writes lifecycle events to a Kafka topic keyed by offer id
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger logger.Logger
}

var _ domainservice.OfferEventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a producer client for the given brokers
func NewKafkaPublisher(brokers []string, clientID, topic string, log logger.Logger) (*KafkaPublisher, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &KafkaPublisher{
		client: client,
		topic:  topic,
		logger: log,
	}, nil
}

// EnsureTopic creates the lifecycle topic when it does not exist yet
func (p *KafkaPublisher) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)

	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", p.topic, err)
	}
	for _, detail := range resp {
		if detail.Err != nil && !strings.Contains(detail.Err.Error(), "already exists") {
			return fmt.Errorf("failed to create topic %s: %w", detail.Topic, detail.Err)
		}
	}

	p.logger.Info("Offer lifecycle topic ensured", map[string]interface{}{
		"topic": p.topic,
	})
	return nil
}

// Publish produces the event synchronously
func (p *KafkaPublisher) Publish(ctx context.Context, event entity.OfferEvent) error {
	record, err := NewRecord(p.topic, event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish %s for offer %s: %w", event.Type, event.OfferID, err)
	}

	p.logger.Debug("Offer event published", map[string]interface{}{
		"topic":    p.topic,
		"type":     event.Type,
		"offer_id": event.OfferID,
	})
	return nil
}

// Close flushes pending records and closes the client
func (p *KafkaPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
	defer cancel()

	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}

// NewRecord encodes an event into a Kafka record keyed by offer id
func NewRecord(topic string, event entity.OfferEvent) (*kgo.Record, error) {
	value, err := json.Marshal(Message{SchemaVersion: SchemaVersion, OfferEvent: event})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal offer event: %w", err)
	}

	return &kgo.Record{
		Topic: topic,
		Key:   []byte(event.OfferID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: EventTypeHeaderKey, Value: []byte(event.Type)},
		},
	}, nil
}
