//go:build integration

package containers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Kafka is a Redpanda broker speaking the Kafka protocol.
type Kafka struct {
	Brokers string
}

func startKafka(ctx context.Context) (*Kafka, error) {
	c, err := kafka.Run(ctx, "redpandadata/redpanda:latest", kafka.WithClusterID("devcred-test"))
	if err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	brokers, err := c.Brokers(ctx)
	if err != nil {
		return nil, fmt.Errorf("kafka brokers: %w", err)
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers advertised")
	}
	return &Kafka{Brokers: brokers[0]}, nil
}

// EnsureTopic creates a single-partition topic, tolerating one that exists.
func (k *Kafka) EnsureTopic(ctx context.Context, topic string) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(k.Brokers))
	if err != nil {
		return err
	}
	defer client.Close()

	res, err := kadm.NewClient(client).CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		return err
	}
	if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
		return res.Err
	}
	return nil
}

// Consume reads topic from the beginning until match accepts a record or the
// timeout passes.
func (k *Kafka) Consume(ctx context.Context, topic string, timeout time.Duration, match func(*kgo.Record) bool) (*kgo.Record, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(k.Brokers),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		fetches := client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("no matching record on %s: %w", topic, err)
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			if r := iter.Next(); match(r) {
				return r, nil
			}
		}
	}
}
