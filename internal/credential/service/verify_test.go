package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/mock/gomock"

	"devcred/internal/audit"
	"devcred/internal/credential/domain/credential"
	"devcred/internal/credential/models"
	"devcred/internal/privacy"
	"devcred/internal/vcdoc"
	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
	"devcred/pkg/platform/sentinel"
	"devcred/pkg/testutil"
)

func (s *ServiceSuite) expectRetrieve(cred *credential.Credential) {
	s.mockStore.EXPECT().Retrieve(gomock.Any(), cred.ID()).Return(cred, nil)
}

func (s *ServiceSuite) TestVerify() {
	s.Run("valid credential earns level and proof bonuses", func() {
		s.SetupTest()
		events := s.expectAudit()
		cred := testutil.NewCredentialBuilder().Build()
		s.expectRetrieve(cred)

		res, err := s.service.Verify(s.ctx, models.VerifyRequest{CredentialID: cred.ID()})

		s.Require().NoError(err)
		s.True(res.IsValid)
		s.Equal(models.StatusReady, res.Status)
		s.Equal(100.0, res.TrustScore)
		s.ElementsMatch([]string{"activeDays", "commitRange", "linesRange", "repositoryCommitment"}, res.ClaimsVerified)
		s.Empty(res.ClaimsFailed)
		s.Equal([]audit.Action{audit.ActionCredentialVerified}, actions(*events))
		s.Equal("valid", (*events)[0].Outcome)
	})

	s.Run("missing required claim", func() {
		s.SetupTest()
		s.expectAudit()
		cred := testutil.NewCredentialBuilder().Build()
		s.expectRetrieve(cred)

		res, err := s.service.Verify(s.ctx, models.VerifyRequest{
			CredentialID:   cred.ID(),
			RequiredClaims: []string{"commitRange", "languageLevel"},
		})

		s.Require().NoError(err)
		s.False(res.IsValid)
		s.Equal([]string{"commitRange"}, res.ClaimsVerified)
		s.Equal([]string{"languageLevel"}, res.ClaimsFailed)
		s.InDelta(65.0, res.TrustScore, 1e-9)
		s.Contains(res.Reason, "languageLevel")
	})

	s.Run("expired credential scores zero", func() {
		s.SetupTest()
		s.expectAudit()
		cred := testutil.NewCredentialBuilder().
			IssuedAt(testNow.Add(-48 * time.Hour)).
			ExpiresAt(testNow.Add(-time.Hour)).
			Build()
		s.expectRetrieve(cred)

		res, err := s.service.Verify(s.ctx, models.VerifyRequest{CredentialID: cred.ID()})

		s.Require().NoError(err)
		s.False(res.IsValid)
		s.Equal(models.StatusExpired, res.Status)
		s.Equal(string(dErrors.CodeCredentialExpired), res.ErrorCode)
		s.Zero(res.TrustScore)
	})

	s.Run("older than the acceptable age", func() {
		s.SetupTest()
		s.expectAudit()
		cred := testutil.NewCredentialBuilder().IssuedAt(testNow.Add(-10 * 24 * time.Hour)).Build()
		s.expectRetrieve(cred)

		res, err := s.service.Verify(s.ctx, models.VerifyRequest{
			CredentialID:         cred.ID(),
			AcceptableAgeSeconds: int64((7 * 24 * time.Hour).Seconds()),
		})

		s.Require().NoError(err)
		s.False(res.IsValid)
		s.Equal(models.StatusExpired, res.Status)
		s.Equal(string(dErrors.CodeCredentialExpired), res.ErrorCode)
	})

	s.Run("revoked wins over expired", func() {
		s.SetupTest()
		s.expectAudit()
		cred := testutil.NewCredentialBuilder().
			IssuedAt(testNow.Add(-48 * time.Hour)).
			ExpiresAt(testNow.Add(-time.Hour)).
			Revoked().
			Build()
		s.expectRetrieve(cred)

		res, err := s.service.Verify(s.ctx, models.VerifyRequest{CredentialID: cred.ID()})

		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, res.Status)
		s.Equal(string(dErrors.CodeRevoked), res.ErrorCode)
		s.Zero(res.TrustScore)
	})

	s.Run("malformed proof", func() {
		s.SetupTest()
		s.expectAudit()
		proof := testutil.Groth16Proof()
		proof.Curve = "secp256k1"
		cred := testutil.NewCredentialBuilder().WithProof(proof).Build()
		s.expectRetrieve(cred)

		res, err := s.service.Verify(s.ctx, models.VerifyRequest{CredentialID: cred.ID()})

		s.Require().NoError(err)
		s.False(res.IsValid)
		s.Equal(string(dErrors.CodeInvalidProof), res.ErrorCode)
	})

	s.Run("presented record is verified without the store", func() {
		s.SetupTest()
		s.expectAudit()
		rec := credential.ToModel(testutil.NewCredentialBuilder().Build())

		res, err := s.service.Verify(s.ctx, models.VerifyRequest{Credential: &rec})

		s.Require().NoError(err)
		s.True(res.IsValid)
		s.Equal(rec.ID, res.CredentialID)
	})

	s.Run("unknown credential", func() {
		s.SetupTest()
		s.mockStore.EXPECT().Retrieve(gomock.Any(), testutil.TestIDs.UnknownCred).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Verify(s.ctx, models.VerifyRequest{CredentialID: testutil.TestIDs.UnknownCred})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("nothing to verify", func() {
		s.SetupTest()
		_, err := s.service.Verify(s.ctx, models.VerifyRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	})
}

func (s *ServiceSuite) TestTrustScore() {
	cases := []struct {
		name     string
		verified int
		failed   int
		level    privacy.Level
		zk       bool
		want     float64
	}{
		{"no claims", 0, 0, privacy.LevelMaximum, true, 0},
		{"all verified basic", 4, 0, privacy.LevelBasic, false, 100},
		{"half verified basic", 1, 1, privacy.LevelBasic, false, 50},
		{"half verified high", 1, 1, privacy.LevelHigh, false, 60},
		{"half verified maximum zk", 1, 1, privacy.LevelMaximum, true, 65},
		{"enhanced earns no level bonus", 1, 3, privacy.LevelEnhanced, true, 30},
		{"clamped at 100", 3, 0, privacy.LevelHigh, true, 100},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.InDelta(tc.want, trustScore(tc.verified, tc.failed, tc.level, tc.zk), 1e-9)
		})
	}
}

func (s *ServiceSuite) TestRevoke() {
	s.Run("revokes a ready credential", func() {
		s.SetupTest()
		events := s.expectAudit()
		cred := testutil.NewCredentialBuilder().Build()
		s.expectRetrieve(cred)
		s.mockStore.EXPECT().UpdateStatus(gomock.Any(), cred.ID(), models.StatusRevoked).Return(true, nil)

		changed, err := s.service.Revoke(s.ctx, cred.ID())

		s.Require().NoError(err)
		s.True(changed)
		s.Equal([]audit.Action{audit.ActionCredentialRevoked}, actions(*events))
	})

	s.Run("revoking twice is a no-op", func() {
		s.SetupTest()
		cred := testutil.NewCredentialBuilder().Revoked().Build()
		s.expectRetrieve(cred)

		changed, err := s.service.Revoke(s.ctx, cred.ID())

		s.Require().NoError(err)
		s.False(changed)
	})

	s.Run("credential deleted concurrently", func() {
		s.SetupTest()
		cred := testutil.NewCredentialBuilder().Build()
		s.expectRetrieve(cred)
		s.mockStore.EXPECT().UpdateStatus(gomock.Any(), cred.ID(), models.StatusRevoked).Return(false, nil)

		_, err := s.service.Revoke(s.ctx, cred.ID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("store failure", func() {
		s.SetupTest()
		cred := testutil.NewCredentialBuilder().Build()
		s.expectRetrieve(cred)
		s.mockStore.EXPECT().UpdateStatus(gomock.Any(), cred.ID(), models.StatusRevoked).Return(false, errors.New("connection reset"))

		_, err := s.service.Revoke(s.ctx, cred.ID())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("lost database connection is unavailable", func() {
		s.SetupTest()
		cred := testutil.NewCredentialBuilder().Build()
		s.expectRetrieve(cred)
		s.mockStore.EXPECT().UpdateStatus(gomock.Any(), cred.ID(), models.StatusRevoked).
			Return(false, fmt.Errorf("update credential status: %w", sentinel.ErrUnavailable))

		_, err := s.service.Revoke(s.ctx, cred.ID())
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *ServiceSuite) TestList() {
	s.Run("skips credentials deleted after listing", func() {
		s.SetupTest()
		expired := testutil.NewCredentialBuilder().
			IssuedAt(testNow.Add(-48 * time.Hour)).
			ExpiresAt(testNow.Add(-time.Hour)).
			Build()
		gone := domain.NewCredentialID()
		s.mockStore.EXPECT().List(gomock.Any(), testutil.TestIDs.Subject1).Return([]domain.CredentialID{expired.ID(), gone}, nil)
		s.expectRetrieve(expired)
		s.mockStore.EXPECT().Retrieve(gomock.Any(), gone).Return(nil, sentinel.ErrNotFound)

		recs, err := s.service.List(s.ctx, testutil.TestIDs.Subject1)

		s.Require().NoError(err)
		s.Require().Len(recs, 1)
		s.Equal(expired.ID(), recs[0].ID)
		s.Equal(models.StatusExpired, recs[0].Status)
	})

	s.Run("subject is required", func() {
		s.SetupTest()
		_, err := s.service.List(s.ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	})
}

func (s *ServiceSuite) TestGet() {
	s.SetupTest()
	cred := testutil.NewCredentialBuilder().Revoked().Build()
	s.expectRetrieve(cred)

	rec, err := s.service.Get(s.ctx, cred.ID())

	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, rec.Status)
}

func (s *ServiceSuite) TestExport() {
	s.Run("delegates to the exporter", func() {
		s.SetupTest()
		cred := testutil.NewCredentialBuilder().Build()
		s.expectRetrieve(cred)
		doc := &vcdoc.Document{ID: "urn:devcred:" + cred.ID().String()}
		s.mockExporter.EXPECT().ToStandard(cred).Return(doc, nil)

		got, err := s.service.Export(s.ctx, cred.ID())

		s.Require().NoError(err)
		s.Same(doc, got)
	})

	s.Run("exporter not configured", func() {
		s.SetupTest()
		svc := New(s.mockStore, s.mockValidator, s.mockAssembler, s.mockBudget)

		_, err := svc.Export(s.ctx, testutil.TestIDs.Credential1)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *ServiceSuite) TestBudgetStatus() {
	s.Run("reports the ledger balance", func() {
		s.SetupTest()
		want := privacy.Balance{Subject: testutil.TestIDs.Subject1, Spent: 2.5, Budget: 10}
		s.mockBudget.EXPECT().Budget(gomock.Any(), testutil.TestIDs.Subject1).Return(want, nil)

		got, err := s.service.BudgetStatus(s.ctx, testutil.TestIDs.Subject1)

		s.Require().NoError(err)
		s.Equal(want, got)
		s.InDelta(7.5, got.Remaining(), 1e-9)
	})

	s.Run("ledger unavailable", func() {
		s.SetupTest()
		s.mockBudget.EXPECT().Budget(gomock.Any(), gomock.Any()).Return(privacy.Balance{}, errors.New("redis: connection refused"))

		_, err := s.service.BudgetStatus(s.ctx, testutil.TestIDs.Subject1)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}
