package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "devcred/pkg/domain-errors"
)

func TestCheckCount(t *testing.T) {
	assert.NoError(t, CheckCount("commitHashes", 0, 20))
	assert.NoError(t, CheckCount("commitHashes", 20, 20))

	err := CheckCount("commitHashes", 21, 20)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.EqualError(t, err, "commitHashes has 21 entries, at most 20 allowed")
}

func TestCheckLength(t *testing.T) {
	cases := []struct {
		name  string
		value string
		ok    bool
	}{
		{"empty", "", true},
		{"at limit", strings.Repeat("a", 8), true},
		{"over limit", strings.Repeat("a", 9), false},
		{"multi-byte at limit", strings.Repeat("é", 8), true},
		{"multi-byte over limit", strings.Repeat("日", 9), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckLength("repository.name", tc.value, 8)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.ErrorContains(t, err, "at most 8 allowed")
		})
	}
}
