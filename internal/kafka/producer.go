package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// subjectPrefix is stripped from event subjects when deriving topics.
const subjectPrefix = "swarm.triage."

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Keyed payloads choose their own partition key.
type Keyed interface {
	PartitionKey() string
}

// Producer mirrors triage events onto Kafka topics. The subject
// "swarm.triage.ingest.completed" goes to topic "<prefix>.ingest.completed".
// Messages are hash-partitioned on their key, so events for one record id
// stay ordered on a single partition.
type Producer struct {
	writer  messageWriter
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewProducer(brokers []string, topicPrefix string, logger *slog.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
		},
		prefix:  topicPrefix,
		timeout: 10 * time.Second,
		logger:  logger,
	}
}

// Topic returns the Kafka topic for an event subject.
func (p *Producer) Topic(subject string) string {
	return p.prefix + "." + strings.TrimPrefix(subject, subjectPrefix)
}

func (p *Producer) Publish(subject string, data any) error {
	value, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := kafka.Message{
		Topic: p.Topic(subject),
		Value: value,
	}
	if k, ok := data.(Keyed); ok {
		msg.Key = []byte(k.PartitionKey())
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Topic, err)
	}
	p.logger.Debug("sent event to kafka", "topic", msg.Topic, "key", string(msg.Key))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
