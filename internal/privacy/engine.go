package privacy

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
)

// Observer receives ledger outcomes; internal/credential/metrics implements it.
type Observer interface {
	EpsilonDebited(epsilon float64)
	BudgetRejected()
}

// Engine draws differentially private releases and accounts for them in the
// ledger.
type Engine struct {
	ledger   Ledger
	source   Source
	logger   *slog.Logger
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithSource overrides the randomness source (crypto/rand by default).
func WithSource(src Source) Option {
	return func(e *Engine) {
		e.source = src
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an engine backed by the given ledger.
func NewEngine(ledger Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger: ledger,
		source: NewCryptoSource(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reservation is a committed ledger debit that can be handed back once when
// the work it paid for is abandoned.
type Reservation struct {
	ledger   Ledger
	subject  domain.SubjectID
	epsilon  float64
	released atomic.Bool
}

// Epsilon returns the amount debited.
func (r *Reservation) Epsilon() float64 {
	if r == nil {
		return 0
	}
	return r.epsilon
}

// Release credits the debit back to the subject. Calling it more than once,
// or on a nil reservation, is a no-op.
func (r *Reservation) Release(ctx context.Context) error {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return nil
	}
	if _, err := r.ledger.Credit(ctx, r.subject, r.epsilon); err != nil {
		r.released.Store(false)
		return err
	}
	return nil
}

// Privatize releases noisy versions of values for subject. The whole release
// costs len(values)·ε and is debited in one atomic step before any noise is
// drawn; on BudgetExceeded nothing is returned and the ledger is unchanged.
func (e *Engine) Privatize(ctx context.Context, subject domain.SubjectID, values []float64, params Parameters) ([]float64, *Reservation, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}
	if len(values) == 0 {
		return nil, nil, nil
	}
	cost := params.Epsilon * float64(len(values))

	bal, err := e.ledger.Debit(ctx, subject, cost)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeBudgetExceeded) {
			e.logger.WarnContext(ctx, "privacy budget exhausted",
				"subject_id", subject.String(),
				"requested_epsilon", cost,
				"spent_epsilon", bal.Spent,
			)
			if e.observer != nil {
				e.observer.BudgetRejected()
			}
		}
		return nil, nil, err
	}
	if e.observer != nil {
		e.observer.EpsilonDebited(cost)
	}

	noisy := make([]float64, len(values))
	for i, v := range values {
		noisy[i] = perturb(e.source, v, params)
	}
	return noisy, &Reservation{ledger: e.ledger, subject: subject, epsilon: cost}, nil
}

// AddNoise is Privatize for a single value whose debit is never rolled back.
func (e *Engine) AddNoise(ctx context.Context, subject domain.SubjectID, value float64, params Parameters) (float64, error) {
	out, _, err := e.Privatize(ctx, subject, []float64{value}, params)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Budget reports the subject's ledger balance.
func (e *Engine) Budget(ctx context.Context, subject domain.SubjectID) (Balance, error) {
	return e.ledger.Balance(ctx, subject)
}

// Reservations groups the debits of a multi-step release.
type Reservations []*Reservation

// Epsilon returns the total amount debited.
func (rs Reservations) Epsilon() float64 {
	var total float64
	for _, r := range rs {
		total += r.Epsilon()
	}
	return total
}

// Release releases every reservation, joining any errors.
func (rs Reservations) Release(ctx context.Context) error {
	var errs []error
	for _, r := range rs {
		if err := r.Release(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
