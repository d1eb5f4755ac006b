package privacy

import (
	"context"
	"math"
	"sync"

	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
	psync "devcred/pkg/platform/sync"
)

// budgetTolerance absorbs float rounding when spends add up exactly to the budget.
const budgetTolerance = 1e-9

// Balance is a subject's position in the ledger.
type Balance struct {
	Subject domain.SubjectID `json:"subjectId"`
	Spent   float64          `json:"spent"`
	Budget  float64          `json:"budget"`
}

// Remaining returns the epsilon still available to the subject.
func (b Balance) Remaining() float64 {
	return math.Max(0, b.Budget-b.Spent)
}

// Ledger tracks cumulative epsilon per subject. Debit must check and commit
// atomically per subject: when the debit would push the subject above its
// budget it fails with CodeBudgetExceeded and leaves the balance unchanged.
type Ledger interface {
	Debit(ctx context.Context, subject domain.SubjectID, epsilon float64) (Balance, error)
	Credit(ctx context.Context, subject domain.SubjectID, epsilon float64) (Balance, error)
	Balance(ctx context.Context, subject domain.SubjectID) (Balance, error)
}

type account struct {
	spent float64
}

// MemoryLedger keeps balances in process. Accounts are serialized per subject
// through a sharded lock; different subjects proceed independently.
type MemoryLedger struct {
	budget   float64
	locks    *psync.ShardedMutex
	accounts sync.Map // domain.SubjectID -> *account
}

// NewMemoryLedger creates a ledger enforcing the given global per-subject budget.
func NewMemoryLedger(budget float64) *MemoryLedger {
	return &MemoryLedger{
		budget: budget,
		locks:  psync.NewShardedMutex(),
	}
}

func (l *MemoryLedger) account(subject domain.SubjectID) *account {
	v, _ := l.accounts.LoadOrStore(subject, &account{})
	return v.(*account)
}

func (l *MemoryLedger) Debit(_ context.Context, subject domain.SubjectID, epsilon float64) (Balance, error) {
	if err := checkAmount(epsilon); err != nil {
		return Balance{}, err
	}
	acc := l.account(subject)

	var (
		bal Balance
		err error
	)
	l.locks.Do(subject.String(), func() {
		bal = Balance{Subject: subject, Spent: acc.spent, Budget: l.budget}
		if acc.spent+epsilon > l.budget+budgetTolerance {
			err = budgetExceeded(bal, epsilon)
			return
		}
		acc.spent += epsilon
		bal.Spent = acc.spent
	})
	return bal, err
}

func (l *MemoryLedger) Credit(_ context.Context, subject domain.SubjectID, epsilon float64) (Balance, error) {
	if err := checkAmount(epsilon); err != nil {
		return Balance{}, err
	}
	acc := l.account(subject)

	var bal Balance
	l.locks.Do(subject.String(), func() {
		acc.spent = math.Max(0, acc.spent-epsilon)
		bal = Balance{Subject: subject, Spent: acc.spent, Budget: l.budget}
	})
	return bal, nil
}

func (l *MemoryLedger) Balance(_ context.Context, subject domain.SubjectID) (Balance, error) {
	v, ok := l.accounts.Load(subject)
	if !ok {
		return Balance{Subject: subject, Budget: l.budget}, nil
	}
	acc := v.(*account)

	var bal Balance
	l.locks.Do(subject.String(), func() {
		bal = Balance{Subject: subject, Spent: acc.spent, Budget: l.budget}
	})
	return bal, nil
}

func checkAmount(epsilon float64) error {
	if math.IsNaN(epsilon) || math.IsInf(epsilon, 0) || epsilon <= 0 {
		return dErrors.Newf(dErrors.CodeInvalidEpsilon, "ledger amount must be positive, got %v", epsilon)
	}
	return nil
}

func budgetExceeded(bal Balance, epsilon float64) error {
	return dErrors.Newf(dErrors.CodeBudgetExceeded,
		"privacy budget exceeded for subject: spent %.4g of %.4g, requested %.4g", bal.Spent, bal.Budget, epsilon)
}
