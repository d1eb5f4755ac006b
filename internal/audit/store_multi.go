package audit

import (
	"context"
	"errors"
)

// MultiStore appends every event to each of its stores. Reads are served by
// the first store that supports them.
type MultiStore []Store

func (m MultiStore) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiStore) ListBySubject(ctx context.Context, subjectID string) ([]Event, error) {
	for _, s := range m {
		if l, ok := s.(Lister); ok {
			return l.ListBySubject(ctx, subjectID)
		}
	}
	return nil, ErrNotListable
}
