package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"bookkeeping/internal/events"

	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "ledger.party_mutated"

// Publisher forwards PartyMutated events to a Kafka topic. Writes are asynchronous so a
// slow broker never holds up a ledger request; delivery errors are logged.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{logger: logger}
	p.writer = &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Async:    true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				p.logger.Error("kafka delivery failed", "topic", topic, "messages", len(messages), "error", err)
			}
		},
	}
	return p
}

// Handle is subscribed to the event bus.
func (p *Publisher) Handle(ctx context.Context, event events.PartyMutated) {
	msg, err := encode(event)
	if err != nil {
		p.logger.Error("encode party event", "user_id", event.UserID, "party", event.Party, "error", err)
		return
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish party event", "user_id", event.UserID, "party", event.Party, "error", err)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// encode keys messages by tenant so one user's events stay ordered within a partition.
func encode(event events.PartyMutated) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.UserID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "reason", Value: []byte(event.Reason)},
		},
	}, nil
}
