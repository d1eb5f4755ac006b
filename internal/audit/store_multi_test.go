package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{ appended int }

func (f *failingStore) Append(context.Context, Event) error {
	f.appended++
	return errors.New("broker unavailable")
}

func TestMultiStore(t *testing.T) {
	ctx := context.Background()
	mem := NewInMemoryStore()
	sink := &failingStore{}
	multi := MultiStore{sink, mem}

	err := multi.Append(ctx, Event{SubjectID: "did:example:alice", Action: ActionCredentialGenerated})

	assert.ErrorContains(t, err, "broker unavailable")
	assert.Equal(t, 1, sink.appended)
	events, err := multi.ListBySubject(ctx, "did:example:alice")
	require.NoError(t, err)
	assert.Len(t, events, 1, "a failing sink does not stop the others")

	_, err = MultiStore{sink}.ListBySubject(ctx, "did:example:alice")
	assert.ErrorIs(t, err, ErrNotListable)
}
