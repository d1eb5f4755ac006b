package shared_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"devcred/internal/credential/domain/shared"
)

type ValueObjectsSuite struct {
	suite.Suite
}

func TestValueObjectsSuite(t *testing.T) {
	suite.Run(t, new(ValueObjectsSuite))
}

func (s *ValueObjectsSuite) TestIssuedAtConstruction() {
	base := time.Date(2025, 3, 4, 5, 6, 7, 891234567, time.FixedZone("CET", 3600))
	cases := []struct {
		name    string
		t       time.Time
		wantErr bool
	}{
		{"rejects zero time", time.Time{}, true},
		{"accepts valid time", base, false},
		{"accepts past time", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			issuedAt, err := shared.NewIssuedAt(tc.t)
			if tc.wantErr {
				s.Require().Error(err)
				s.ErrorIs(err, shared.ErrInvalidIssuedAt)
				return
			}
			s.Require().NoError(err)
			s.True(tc.t.Truncate(time.Millisecond).Equal(issuedAt.Time()))
			s.Equal(time.UTC, issuedAt.Time().Location())
		})
	}
}

func (s *ValueObjectsSuite) TestIssuedAtTruncatesToMilliseconds() {
	issuedAt, err := shared.NewIssuedAt(time.Date(2025, 1, 1, 0, 0, 0, 123456789, time.UTC))
	s.Require().NoError(err)
	s.Equal(123000000, issuedAt.Time().Nanosecond())
}

func (s *ValueObjectsSuite) TestExpiresAtAfter() {
	issuedAt, err := shared.NewIssuedAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)

	s.Run("rejects zero time", func() {
		_, err := shared.NewExpiresAtAfter(time.Time{}, issuedAt)
		s.ErrorIs(err, shared.ErrInvalidExpiresAt)
	})

	s.Run("rejects expiry equal to issuance", func() {
		_, err := shared.NewExpiresAtAfter(issuedAt.Time(), issuedAt)
		s.ErrorIs(err, shared.ErrExpiresBeforeIssued)
	})

	s.Run("rejects expiry before issuance", func() {
		_, err := shared.NewExpiresAtAfter(issuedAt.Time().Add(-time.Hour), issuedAt)
		s.ErrorIs(err, shared.ErrExpiresBeforeIssued)
	})

	s.Run("accepts later expiry", func() {
		exp, err := shared.NewExpiresAtAfter(issuedAt.Time().Add(time.Hour), issuedAt)
		s.Require().NoError(err)
		s.False(exp.IsZero())
		s.NotNil(exp.Ptr())
	})
}

func (s *ValueObjectsSuite) TestIsExpiredAt() {
	issuedAt, err := shared.NewIssuedAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	exp, err := shared.NewExpiresAtAfter(issuedAt.Time().Add(24*time.Hour), issuedAt)
	s.Require().NoError(err)

	s.False(exp.IsExpiredAt(issuedAt.Time().Add(time.Hour)))
	s.False(exp.IsExpiredAt(exp.Time()))
	s.True(exp.IsExpiredAt(exp.Time().Add(time.Millisecond)))

	none := shared.NoExpiration()
	s.True(none.IsZero())
	s.Nil(none.Ptr())
	s.False(none.IsExpiredAt(time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)))

	s.Equal(2*time.Hour, issuedAt.AgeAt(issuedAt.Time().Add(2*time.Hour)))
}
