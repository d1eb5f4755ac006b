// Package producer publishes audit records to Kafka through franz-go.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
)

var ErrClosed = errors.New("producer is closed")

type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type Config struct {
	// Brokers is a comma separated seed list.
	Brokers string
	// Acks is "0", "1" or "all". Only "all" keeps idempotent writes.
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
	FlushTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 30 * time.Second,
		FlushTimeout:    30 * time.Second,
	}
}

func (c Config) options() ([]kgo.Opt, error) {
	var seeds []string
	for b := range strings.SplitSeq(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			seeds = append(seeds, b)
		}
	}
	if len(seeds) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(seeds...),
		kgo.RecordRetries(c.Retries),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	}
	switch c.Acks {
	case "all", "":
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	case "1":
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	case "0":
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite())
	default:
		return nil, fmt.Errorf("unsupported kafka acks %q", c.Acks)
	}
	if c.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(c.DeliveryTimeout))
	}
	return opts, nil
}

// Producer sends records synchronously. It is safe for concurrent use.
type Producer struct {
	client       *kgo.Client
	logger       *slog.Logger
	flushTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// New builds the client. When reg is non-nil, delivered and failed records
// are counted per topic.
func New(cfg Config, logger *slog.Logger, reg prometheus.Registerer) (*Producer, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	if reg != nil {
		h := newDeliveryHook()
		if err := reg.Register(h.records); err != nil {
			return nil, fmt.Errorf("register kafka metrics: %w", err)
		}
		opts = append(opts, kgo.WithHooks(h))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	flush := cfg.FlushTimeout
	if flush <= 0 {
		flush = DefaultConfig().FlushTimeout
	}
	return &Producer{client: client, logger: logger, flushTimeout: flush}, nil
}

// Produce sends msg and waits for the broker acknowledgement.
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if err := p.client.ProduceSync(ctx, toRecord(msg)).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", msg.Topic, err)
	}
	return nil
}

// toRecord orders headers by key so identical messages produce identical
// records.
func toRecord(msg *Message) *kgo.Record {
	headers := make([]kgo.RecordHeader, 0, len(msg.Headers))
	for _, k := range slices.Sorted(maps.Keys(msg.Headers)) {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(msg.Headers[k])})
	}
	return &kgo.Record{Topic: msg.Topic, Key: msg.Key, Value: msg.Value, Headers: headers}
}

func (p *Producer) Health(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	return p.client.Ping(ctx)
}

// Close flushes buffered records, bounded by the flush timeout, and shuts
// the client down. Later calls are no-ops.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), p.flushTimeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("kafka producer closed with unflushed records", "error", err)
	}
	p.client.Close()
	return nil
}

// deliveryHook counts each record once its delivery succeeds or fails.
type deliveryHook struct {
	records *prometheus.CounterVec
}

func newDeliveryHook() *deliveryHook {
	return &deliveryHook{records: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devcred_kafka_records_total",
		Help: "Audit records handed to Kafka by delivery result",
	}, []string{"topic", "result"})}
}

func (h *deliveryHook) OnProduceRecordUnbuffered(r *kgo.Record, err error) {
	result := "delivered"
	if err != nil {
		result = "failed"
	}
	h.records.WithLabelValues(r.Topic, result).Inc()
}

var _ kgo.HookProduceRecordUnbuffered = (*deliveryHook)(nil)
