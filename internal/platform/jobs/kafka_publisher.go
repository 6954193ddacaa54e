package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/RANAPRINCE06/Watch/internal/services"
)

const defaultKafkaWriteTimeout = 5 * time.Second

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaOrderPublisher writes order events to a Kafka topic keyed by order id, so events for one
// order stay on one partition.
type KafkaOrderPublisher struct {
	writer  kafkaWriter
	timeout time.Duration
}

// NewKafkaOrderPublisher builds a publisher over brokers.
func NewKafkaOrderPublisher(brokers []string, topic string) (*KafkaOrderPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka order publisher: brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka order publisher: topic is required")
	}
	return &KafkaOrderPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		timeout: defaultKafkaWriteTimeout,
	}, nil
}

// PublishOrderEvent implements services.OrderEventPublisher.
func (p *KafkaOrderPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	headers := []kafka.Header{{Key: "type", Value: []byte(event.Type)}}
	if event.ID != "" {
		headers = append(headers, kafka.Header{Key: "eventId", Value: []byte(event.ID)})
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.OrderID),
		Value:   value,
		Headers: headers,
		Time:    event.OccurredAt,
	}); err != nil {
		return fmt.Errorf("write order event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaOrderPublisher) Close() error {
	return p.writer.Close()
}
