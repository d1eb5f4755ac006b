package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestMessage() {
	s.Equal("credential not found", New(CodeNotFound, "credential not found").Error())
	s.Equal("revoked", (&Error{Code: CodeRevoked}).Error())
	s.Equal("batch of 12 exceeds limit 10", Newf(CodeBatchTooLarge, "batch of %d exceeds limit %d", 12, 10).Error())
}

func (s *DomainErrorsSuite) TestWrapKeepsInnermostCode() {
	s.Run("coded cause wins", func() {
		err := Wrap(New(CodeTimeout, "prover timed out"), CodeInternal, "generation failed")
		s.Equal(CodeTimeout, CodeOf(err))
		s.Equal("generation failed", err.Error())
	})

	s.Run("code survives fmt wrapping in between", func() {
		inner := fmt.Errorf("assemble: %w", New(CodeBudgetExceeded, "spent"))
		s.True(HasCode(Wrap(inner, CodeInternal, "generate"), CodeBudgetExceeded))
	})

	s.Run("plain cause takes the given code", func() {
		root := errors.New("connection reset")
		err := Wrap(root, CodeUnavailable, "ledger unreachable")
		s.Equal(CodeUnavailable, CodeOf(err))
		s.ErrorIs(err, root)
	})
}

func (s *DomainErrorsSuite) TestErrorsIsMatchesByCode() {
	err := fmt.Errorf("verify: %w", New(CodeRevoked, "credential revoked at 12:00"))
	s.ErrorIs(err, &Error{Code: CodeRevoked})
	s.NotErrorIs(err, &Error{Code: CodeCredentialExpired})
	s.NotErrorIs(err, errors.New("revoked"))
}

func (s *DomainErrorsSuite) TestCodeOf() {
	s.Equal(CodeInternal, CodeOf(errors.New("boom")))
	s.Equal(CodeInternal, CodeOf(nil))
	s.False(HasCode(nil, CodeNotFound))
	s.False(HasCode(errors.New("not_found"), CodeNotFound))
}
