package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"devcred/internal/audit"
	"devcred/internal/credential/assembler"
	"devcred/internal/credential/models"
	"devcred/internal/validation"
	dErrors "devcred/pkg/domain-errors"
	fixtures "devcred/pkg/testutil"
)

func (s *ServiceSuite) TestGenerate() {
	s.Run("ready credential is stored and audited", func() {
		s.SetupTest()
		events := s.expectAudit()
		cred := fixtures.NewCredentialBuilder().Build()
		out := s.assembled(cred, 0.5)

		s.mockValidator.EXPECT().Run(gomock.Any()).Return(admissible())
		s.mockAssembler.EXPECT().Assemble(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in assembler.Input) (*assembler.Output, error) {
				s.Equal(testNow, in.Now)
				s.Equal("req-1", in.Request.RequestID)
				return out, nil
			})
		s.mockStore.EXPECT().Store(gomock.Any(), cred).Return(cred.ID(), nil)

		res := s.service.Generate(s.ctx, repositoryRequest("req-1"))

		s.Equal(models.GenerateStatusReady, res.Status)
		s.Empty(res.Error)
		s.Require().NotNil(res.Credential)
		s.Equal(cred.ID(), res.Credential.ID)
		s.Equal("req-1", res.RequestID)
		s.Equal("devcred:vk/repository/v1.0", res.VerificationKeyRef)
		s.Equal(out.ProofSize, res.ProofSizeBytes)
		s.InDelta(0.5, res.EpsilonSpent, 1e-9)
		s.Equal("high", res.PrivacyLevel)
		s.Len(res.Compliance, 1)
		s.InDelta(0.5, s.spent(), 1e-9)
		s.Equal([]audit.Action{audit.ActionCredentialGenerated}, actions(*events))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.GenerationsTotal.WithLabelValues("repository", "ready")))
		s.Empty(s.service.Pending())
	})

	s.Run("request id is assigned when missing", func() {
		s.SetupTest()
		s.mockValidator.EXPECT().Run(gomock.Any()).Return(blocked("INJECTION"))

		res := s.service.Generate(s.ctx, repositoryRequest(""))
		s.NotEmpty(res.RequestID)
	})

	s.Run("unsupported type never reaches the pipeline", func() {
		s.SetupTest()
		req := repositoryRequest("req-2")
		req.Type = "badge"

		res := s.service.Generate(s.ctx, req)

		s.Equal(models.GenerateStatusInvalid, res.Status)
		s.Equal(string(dErrors.CodeUnsupportedType), res.ErrorCode)
		s.Nil(res.Credential)
	})

	s.Run("blocking findings stop generation", func() {
		s.SetupTest()
		s.mockValidator.EXPECT().Run(gomock.Any()).Return(blocked("INJECTION"))

		res := s.service.Generate(s.ctx, repositoryRequest("req-3"))

		s.Equal(models.GenerateStatusInvalid, res.Status)
		s.Equal(string(dErrors.CodeValidation), res.ErrorCode)
		s.Require().Len(res.Findings, 1)
		s.Equal("INJECTION", res.Findings[0].Code)
		s.Contains(res.Error, "name contains a script tag")
		s.Zero(s.spent())
	})

	s.Run("budget exhaustion is audited", func() {
		s.SetupTest()
		events := s.expectAudit()
		s.mockValidator.EXPECT().Run(gomock.Any()).Return(admissible())
		s.mockAssembler.EXPECT().Assemble(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeBudgetExceeded, "privacy budget exhausted"))

		res := s.service.Generate(s.ctx, repositoryRequest("req-4"))

		s.Equal(models.GenerateStatusInvalid, res.Status)
		s.Equal(string(dErrors.CodeBudgetExceeded), res.ErrorCode)
		s.Equal([]audit.Action{audit.ActionBudgetRejected}, actions(*events))
	})

	s.Run("store failure releases the debited budget", func() {
		s.SetupTest()
		cred := fixtures.NewCredentialBuilder().Build()
		out := s.assembled(cred, 1.5)
		s.Require().InDelta(1.5, s.spent(), 1e-9)

		s.mockValidator.EXPECT().Run(gomock.Any()).Return(admissible())
		s.mockAssembler.EXPECT().Assemble(gomock.Any(), gomock.Any()).Return(out, nil)
		s.mockStore.EXPECT().Store(gomock.Any(), gomock.Any()).Return(cred.ID(), errors.New("disk full"))

		res := s.service.Generate(s.ctx, repositoryRequest("req-5"))

		s.Equal(models.GenerateStatusInvalid, res.Status)
		s.Equal(string(dErrors.CodeInternal), res.ErrorCode)
		s.Contains(res.Error, "disk full")
		s.Zero(s.spent())
	})

	s.Run("prover exceeding the verification timeout", func() {
		s.SetupTest()
		svc := s.newService(WithVerificationTimeout(20 * time.Millisecond))
		s.mockValidator.EXPECT().Run(gomock.Any()).Return(admissible())
		s.mockAssembler.EXPECT().Assemble(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, _ assembler.Input) (*assembler.Output, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})

		res := svc.Generate(s.ctx, repositoryRequest("req-6"))

		s.Equal(models.GenerateStatusInvalid, res.Status)
		s.Equal(string(dErrors.CodeTimeout), res.ErrorCode)
	})

	s.Run("request is pending while it runs", func() {
		s.SetupTest()
		s.mockValidator.EXPECT().Run(gomock.Any()).DoAndReturn(func(models.GenerateRequest) validation.Result {
			pending := s.service.Pending()
			s.Require().Len(pending, 1)
			s.Equal("req-7", pending[0].RequestID)
			s.Equal(testNow, pending[0].StartedAt)
			return blocked("INJECTION")
		})

		s.service.Generate(s.ctx, repositoryRequest("req-7"))
		s.Empty(s.service.Pending())
	})
}

func (s *ServiceSuite) TestGenerateBatch() {
	s.Run("empty batch", func() {
		s.SetupTest()
		_, err := s.service.GenerateBatch(s.ctx, nil, models.BatchOptions{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	})

	s.Run("oversized batch is rejected before any work", func() {
		s.SetupTest()
		reqs := []models.GenerateRequest{repositoryRequest("a"), repositoryRequest("b"), repositoryRequest("c")}

		res, err := s.service.GenerateBatch(s.ctx, reqs, models.BatchOptions{MaxBatchSize: 2})

		s.Nil(res)
		s.True(dErrors.HasCode(err, dErrors.CodeBatchTooLarge))
	})

	s.Run("service limit applies when options leave it unset", func() {
		s.SetupTest()
		svc := s.newService(WithMaxBatchSize(1))
		_, err := svc.GenerateBatch(s.ctx, []models.GenerateRequest{repositoryRequest("a"), repositoryRequest("b")}, models.BatchOptions{})
		s.True(dErrors.HasCode(err, dErrors.CodeBatchTooLarge))
	})

	s.Run("parallel batch keeps order and isolates failures", func() {
		s.SetupTest()
		defer goleak.VerifyNone(s.T())

		s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
		s.mockValidator.EXPECT().Run(gomock.Any()).DoAndReturn(func(req models.GenerateRequest) validation.Result {
			if req.RequestID == "b" {
				return blocked("INJECTION")
			}
			return admissible()
		}).Times(3)
		s.mockAssembler.EXPECT().Assemble(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, assembler.Input) (*assembler.Output, error) {
				return &assembler.Output{Credential: fixtures.NewCredentialBuilder().Build()}, nil
			}).Times(2)
		s.mockStore.EXPECT().Store(gomock.Any(), gomock.Any()).Return(fixtures.TestIDs.Credential1, nil).Times(2)

		reqs := []models.GenerateRequest{repositoryRequest("a"), repositoryRequest("b"), repositoryRequest("c")}
		res, err := s.service.GenerateBatch(s.ctx, reqs, models.BatchOptions{Parallel: true})

		s.Require().NoError(err)
		s.NotEmpty(res.BatchID)
		s.Equal(2, res.SuccessCount)
		s.Equal(1, res.FailureCount)
		s.Equal(models.BatchStatusPartial, res.OverallStatus)
		s.Require().Len(res.Results, 3)
		for i, id := range []string{"a", "b", "c"} {
			s.Equal(id, res.Results[i].RequestID)
		}
		s.Equal(models.GenerateStatusInvalid, res.Results[1].Status)
		s.Empty(s.service.Pending())
	})

	s.Run("repeated request ids are tracked separately", func() {
		s.SetupTest()
		defer goleak.VerifyNone(s.T())

		var inside, checked sync.WaitGroup
		inside.Add(2)
		checked.Add(2)
		var mu sync.Mutex
		var seen [][]models.PendingRequest
		s.mockValidator.EXPECT().Run(gomock.Any()).DoAndReturn(func(models.GenerateRequest) validation.Result {
			inside.Done()
			inside.Wait()
			pending := s.service.Pending()
			mu.Lock()
			seen = append(seen, pending)
			mu.Unlock()
			checked.Done()
			checked.Wait()
			return blocked("INJECTION")
		}).Times(2)

		reqs := []models.GenerateRequest{repositoryRequest("dup"), repositoryRequest("dup")}
		res, err := s.service.GenerateBatch(s.ctx, reqs, models.BatchOptions{Parallel: true})

		s.Require().NoError(err)
		s.Require().Len(res.Results, 2)
		s.Require().Len(seen, 2)
		for _, pending := range seen {
			s.Require().Len(pending, 2)
			for _, p := range pending {
				s.Equal("dup", p.RequestID)
				s.Equal(res.BatchID, p.BatchID)
			}
		}
		s.Empty(s.service.Pending())
		s.Zero(testutil.ToFloat64(s.metrics.PendingRequests))
	})

	s.Run("sequential batch where everything fails", func() {
		s.SetupTest()
		defer goleak.VerifyNone(s.T())

		s.mockValidator.EXPECT().Run(gomock.Any()).Return(blocked("INJECTION")).Times(2)

		res, err := s.service.GenerateBatch(s.ctx,
			[]models.GenerateRequest{repositoryRequest("a"), repositoryRequest("b")},
			models.BatchOptions{})

		s.Require().NoError(err)
		s.Equal(0, res.SuccessCount)
		s.Equal(models.BatchStatusFailed, res.OverallStatus)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.BatchesTotal.WithLabelValues("failed")))
	})
}
