package sentinel

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "devcred/pkg/domain-errors"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		err  error
		want dErrors.Code
	}{
		{fmt.Errorf("credential x: %w", ErrNotFound), dErrors.CodeNotFound},
		{fmt.Errorf("status: %w", ErrInvalidState), dErrors.CodeInvalidInput},
		{fmt.Errorf("list: %w", ErrUnavailable), dErrors.CodeUnavailable},
		{fmt.Errorf("credential x: %w", ErrConflict), dErrors.CodeInternal},
	}
	for _, tc := range cases {
		got, ok := Translate(tc.err, "store failed")
		assert.True(t, ok, tc.err.Error())
		assert.Equal(t, tc.want, dErrors.CodeOf(got), tc.err.Error())
		assert.ErrorIs(t, got, tc.err)
	}

	plain := errors.New("disk on fire")
	got, ok := Translate(plain, "store failed")
	assert.False(t, ok)
	assert.Same(t, plain, got)
}
