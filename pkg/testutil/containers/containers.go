//go:build integration

// Package containers starts the backing services used by integration tests.
// Each service starts once per test binary and is shared by every test in the
// package; Ryuk removes the containers when the process exits.
package containers

import (
	"context"
	"sync"
	"testing"
	"time"
)

const startTimeout = 2 * time.Minute

// shared starts a fixture on first use. A failed start is remembered so later
// tests fail immediately instead of retrying.
type shared[T any] struct {
	once  sync.Once
	value T
	err   error
}

func (s *shared[T]) get(t *testing.T, start func(ctx context.Context) (T, error)) T {
	t.Helper()
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		s.value, s.err = start(ctx)
	})
	if s.err != nil {
		t.Fatalf("start container: %v", s.err)
	}
	return s.value
}

var (
	postgresFixture shared[*Postgres]
	kafkaFixture    shared[*Kafka]
	redisFixture    shared[*Redis]
)

// PostgresDB returns the shared Postgres with every migration applied.
func PostgresDB(t *testing.T) *Postgres {
	t.Helper()
	return postgresFixture.get(t, startPostgres)
}

// KafkaBroker returns the shared Kafka-compatible broker.
func KafkaBroker(t *testing.T) *Kafka {
	t.Helper()
	return kafkaFixture.get(t, startKafka)
}

// RedisServer returns the shared Redis, flushed for the calling test.
func RedisServer(t *testing.T) *Redis {
	t.Helper()
	r := redisFixture.get(t, startRedis)
	if err := r.Client.FlushAll(context.Background()).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return r
}
