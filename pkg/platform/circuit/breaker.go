// Package circuit guards calls to a remote dependency. After enough
// consecutive failures the breaker opens and only lets an occasional probe
// through until the dependency recovers.
package circuit

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Transition reports whether a Record call changed the state.
type Transition struct {
	Opened bool
	Closed bool
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	probeInterval    time.Duration
	now              func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	lastProbe time.Time
}

type Option func(*Breaker)

// WithFailureThreshold sets the consecutive failures that open the breaker. Default 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the consecutive probe successes that close it. Default 2.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithProbeInterval sets how often Allow admits a call while open. Default 5s.
func WithProbeInterval(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.probeInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 2,
		probeInterval:    5 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) IsOpen() bool { return b.State() == StateOpen }

// Allow reports whether a call may proceed: always while closed, and at most
// once per probe interval while open.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return true
	}
	now := b.now()
	if now.Sub(b.lastProbe) < b.probeInterval {
		return false
	}
	b.lastProbe = now
	return true
}

// RecordFailure counts a dependency failure. A failed probe keeps the
// breaker open and restarts the probe interval.
func (b *Breaker) RecordFailure() Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	if b.state == StateOpen {
		b.lastProbe = b.now()
		return Transition{}
	}
	b.failures++
	if b.failures < b.failureThreshold {
		return Transition{}
	}
	b.state = StateOpen
	b.lastProbe = b.now()
	return Transition{Opened: true}
}

// RecordSuccess resets the failure count, or counts toward closing when open.
func (b *Breaker) RecordSuccess() Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		b.failures = 0
		return Transition{}
	}
	b.successes++
	if b.successes < b.successThreshold {
		return Transition{}
	}
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	return Transition{Closed: true}
}
