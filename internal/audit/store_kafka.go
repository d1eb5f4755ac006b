package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"devcred/internal/platform/kafka/producer"
)

// Producer is the part of the Kafka producer the sink needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaStore forwards events to a topic, keyed by subject so a subject's
// events stay ordered within one partition.
type KafkaStore struct {
	producer Producer
	topic    string
}

func NewKafkaStore(p Producer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.SubjectID),
		Value: value,
		Headers: map[string]string{
			"action": string(event.Action),
		},
	})
}
