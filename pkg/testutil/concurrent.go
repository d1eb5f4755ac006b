package testutil

import (
	"errors"
	"sync"

	dErrors "devcred/pkg/domain-errors"
	"devcred/pkg/platform/sentinel"
)

// ConcurrentResult counts how concurrent operations ended.
type ConcurrentResult struct {
	Successes int32
	// Rejected counts privacy budget refusals.
	Rejected int32
	NotFound int32
	Errors   int32
	// Errs holds every non-nil error indexed by goroutine.
	Errs []error
}

// Unexpected returns the errors that were neither budget refusals nor
// not-found results, for failure messages.
func (r *ConcurrentResult) Unexpected() error {
	var out []error
	for _, err := range r.Errs {
		if err != nil && classify(err) == outcomeError {
			out = append(out, err)
		}
	}
	return errors.Join(out...)
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRejected
	outcomeNotFound
	outcomeError
)

func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case dErrors.HasCode(err, dErrors.CodeBudgetExceeded):
		return outcomeRejected
	case dErrors.HasCode(err, dErrors.CodeNotFound), errors.Is(err, sentinel.ErrNotFound):
		return outcomeNotFound
	default:
		return outcomeError
	}
}

// RunConcurrent runs fn on n goroutines released together, so the calls
// overlap as much as the scheduler allows.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	res := &ConcurrentResult{Errs: make([]error, n)}
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			<-release
			res.Errs[i] = fn(i)
		})
	}
	close(release)
	wg.Wait()

	for _, err := range res.Errs {
		switch classify(err) {
		case outcomeSuccess:
			res.Successes++
		case outcomeRejected:
			res.Rejected++
		case outcomeNotFound:
			res.NotFound++
		default:
			res.Errors++
		}
	}
	return res
}
