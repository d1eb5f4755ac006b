// Package audit records credential lifecycle events.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotListable is returned by List when the store is write-only.
	ErrNotListable = errors.New("audit store does not support listing")
	ErrClosed      = errors.New("audit publisher is closed")
)

const writeTimeout = 10 * time.Second

// Publisher stamps events and appends them to a Store, inline or through a
// bounded queue drained by one background writer.
type Publisher struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	queue   chan Event
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues up to size events for the background writer.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan Event, size)
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.New(slog.DiscardHandler), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"event_id", event.ID,
				"action", event.Action,
				"subject_id", event.SubjectID,
			)
		}
		cancel()
	}
}

// Emit stamps event with an ID and UTC time when missing and records it.
// A full queue drops the event rather than stall credential operations.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		event.ID = id.String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	event.Timestamp = event.Timestamp.UTC()

	if p.queue == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- event:
	default:
		p.dropped.Add(1)
		p.logger.WarnContext(ctx, "audit queue full, event dropped",
			"action", event.Action,
			"subject_id", event.SubjectID,
		)
	}
	return nil
}

// Dropped counts events discarded because the queue was full.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Close stops accepting events and waits for queued ones to be written.
// It is safe to call more than once.
func (p *Publisher) Close() {
	if p.queue == nil {
		return
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}

// List returns the subject's events when the store supports reads.
func (p *Publisher) List(ctx context.Context, subjectID string) ([]Event, error) {
	if l, ok := p.store.(Lister); ok {
		return l.ListBySubject(ctx, subjectID)
	}
	return nil, ErrNotListable
}
