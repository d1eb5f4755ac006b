package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"devcred/internal/audit"
	"devcred/internal/credential/domain/credential"
	"devcred/internal/credential/models"
	"devcred/internal/credential/prover"
	"devcred/internal/platform/tracer"
	"devcred/internal/privacy"
	"devcred/internal/vcdoc"
	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
	"devcred/pkg/platform/middleware/request"
	"devcred/pkg/platform/middleware/requesttime"
	"devcred/pkg/platform/sentinel"
)

const (
	privacyLevelBonus = 10
	zkBackedBonus     = 5
)

// Verify checks a stored or presented credential. Lifecycle rejections
// (expired, revoked, invalid proof) are reported in the result with a zero
// trust score; the error return is reserved for storage failures.
func (s *Service) Verify(ctx context.Context, req models.VerifyRequest) (*models.VerificationResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanVerify,
		tracer.String(tracer.AttrCredentialID, req.CredentialID.String()),
	)

	cred, err := s.resolve(ctx, req)
	if err != nil {
		span.End(err)
		return nil, err
	}

	res := evaluate(cred, req, requesttime.Now(ctx))
	res.CredentialID = cred.ID()
	res.VerificationTimeMs = time.Since(start).Milliseconds()

	span.SetAttributes(
		tracer.Bool("verification.valid", res.IsValid),
		tracer.Float64(tracer.AttrTrustScore, res.TrustScore),
	)
	span.End(nil)
	if s.metrics != nil {
		s.metrics.RecordVerification(res.IsValid, res.TrustScore)
	}
	outcome := "valid"
	if !res.IsValid {
		outcome = "invalid"
	}
	s.emitAudit(ctx, audit.Event{
		Action:         audit.ActionCredentialVerified,
		SubjectID:      cred.Subject().String(),
		CredentialID:   cred.ID().String(),
		CredentialType: string(cred.Type()),
		Outcome:        outcome,
		Reason:         res.ErrorCode,
		RequestID:      request.IDFromContext(ctx),
	})
	return res, nil
}

func (s *Service) resolve(ctx context.Context, req models.VerifyRequest) (*credential.Credential, error) {
	switch {
	case !req.CredentialID.IsNil():
		return s.retrieve(ctx, req.CredentialID)
	case req.Credential != nil:
		cred, err := credential.FromModel(*req.Credential)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "presented credential is malformed")
		}
		return cred, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "credentialId or credential is required")
	}
}

func (s *Service) retrieve(ctx context.Context, id domain.CredentialID) (*credential.Credential, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.verificationTimeout)
	defer cancel()

	cred, err := s.store.Retrieve(opCtx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "credential %s not found", id)
		}
		return nil, lifecycleError(opCtx, err, "failed to retrieve credential")
	}
	return cred, nil
}

// evaluate applies the verification rules in order: revocation, expiry,
// acceptable age, proof structure, then claim presence.
func evaluate(cred *credential.Credential, req models.VerifyRequest, now time.Time) *models.VerificationResult {
	res := &models.VerificationResult{
		Status:         cred.StatusAt(now),
		ClaimsVerified: []string{},
		ClaimsFailed:   []string{},
	}
	reject := func(code dErrors.Code, reason string) *models.VerificationResult {
		res.ErrorCode = string(code)
		res.Reason = reason
		return res
	}

	if cred.IsRevoked() {
		return reject(dErrors.CodeRevoked, "credential has been revoked")
	}
	if cred.IsExpiredAt(now) {
		return reject(dErrors.CodeCredentialExpired,
			fmt.Sprintf("credential expired at %s", cred.ExpiresAt().Time().Format(time.RFC3339)))
	}
	if maxAge := req.MaxAge(); maxAge > 0 && now.Sub(cred.IssuedAt().Time()) > maxAge {
		res.Status = models.StatusExpired
		return reject(dErrors.CodeCredentialExpired,
			fmt.Sprintf("credential is older than the acceptable age of %s", maxAge))
	}
	if err := prover.CheckStructure(cred.Proof()); err != nil {
		return reject(dErrors.CodeInvalidProof, err.Error())
	}

	claimMap := cred.Claims().ToMap()
	required := req.RequiredClaims
	if len(required) == 0 {
		for k := range claimMap {
			required = append(required, k)
		}
		slices.Sort(required)
	}
	for _, name := range required {
		if v, ok := claimMap[name]; ok && v != nil {
			res.ClaimsVerified = append(res.ClaimsVerified, name)
		} else {
			res.ClaimsFailed = append(res.ClaimsFailed, name)
		}
	}

	res.TrustScore = trustScore(len(res.ClaimsVerified), len(res.ClaimsFailed), cred.PrivacyLevel(), cred.ZKBacked())
	res.IsValid = len(res.ClaimsFailed) == 0
	if !res.IsValid {
		res.Reason = fmt.Sprintf("missing claims: %v", res.ClaimsFailed)
	}
	return res
}

// trustScore is the verified claim percentage plus level and proof bonuses,
// clamped to [0,100].
func trustScore(verified, failed int, level privacy.Level, zk bool) float64 {
	total := verified + failed
	if total == 0 {
		return 0
	}
	score := 100 * float64(verified) / float64(total)
	if level.AtLeast(privacy.LevelHigh) {
		score += privacyLevelBonus
	}
	if zk {
		score += zkBackedBonus
	}
	return min(max(score, 0), 100)
}

// Revoke moves a credential to revoked. Revoking an already revoked
// credential succeeds without side effects; the bool reports a change.
func (s *Service) Revoke(ctx context.Context, id domain.CredentialID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRevoke, tracer.String(tracer.AttrCredentialID, id.String()))
	changed, err := s.revoke(ctx, id)
	span.SetAttributes(tracer.Bool("credential.changed", changed))
	span.End(err)
	return changed, err
}

func (s *Service) revoke(ctx context.Context, id domain.CredentialID) (bool, error) {
	cred, err := s.retrieve(ctx, id)
	if err != nil {
		return false, err
	}
	if !cred.Revoke() {
		return false, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, s.verificationTimeout)
	defer cancel()
	updated, err := s.store.UpdateStatus(opCtx, id, models.StatusRevoked)
	if err != nil {
		return false, lifecycleError(opCtx, err, "failed to revoke credential")
	}
	if !updated {
		return false, dErrors.Newf(dErrors.CodeNotFound, "credential %s not found", id)
	}

	if s.metrics != nil {
		s.metrics.IncrementRevocations()
	}
	s.emitAudit(ctx, audit.Event{
		Action:         audit.ActionCredentialRevoked,
		SubjectID:      cred.Subject().String(),
		CredentialID:   id.String(),
		CredentialType: string(cred.Type()),
		Outcome:        string(models.StatusRevoked),
		RequestID:      request.IDFromContext(ctx),
	})
	s.logger.InfoContext(ctx, "credential revoked",
		"credential_id", id.String(),
		"subject_id", cred.Subject().String(),
	)
	return true, nil
}

// Get returns a credential with its status as of the request time.
func (s *Service) Get(ctx context.Context, id domain.CredentialID) (*models.CredentialRecord, error) {
	cred, err := s.retrieve(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := credential.ToModel(cred)
	rec.Status = cred.StatusAt(requesttime.Now(ctx))
	return &rec, nil
}

// List returns the subject's credentials in issuance order.
func (s *Service) List(ctx context.Context, subject domain.SubjectID) ([]models.CredentialRecord, error) {
	if subject.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "subject is required")
	}
	opCtx, cancel := context.WithTimeout(ctx, s.verificationTimeout)
	defer cancel()

	ids, err := s.store.List(opCtx, subject)
	if err != nil {
		return nil, lifecycleError(opCtx, err, "failed to list credentials")
	}
	now := requesttime.Now(ctx)
	out := make([]models.CredentialRecord, 0, len(ids))
	for _, id := range ids {
		cred, err := s.store.Retrieve(opCtx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			// deleted between List and Retrieve
			continue
		}
		if err != nil {
			return nil, lifecycleError(opCtx, err, "failed to retrieve credential")
		}
		rec := credential.ToModel(cred)
		rec.Status = cred.StatusAt(now)
		out = append(out, rec)
	}
	return out, nil
}

// Export renders a stored credential as a standard VC document.
func (s *Service) Export(ctx context.Context, id domain.CredentialID) (*vcdoc.Document, error) {
	if s.exporter == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "credential export is not configured")
	}
	cred, err := s.retrieve(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.exporter.ToStandard(cred)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to export credential")
	}
	return doc, nil
}

// BudgetStatus reports how much of the subject's privacy budget is spent.
func (s *Service) BudgetStatus(ctx context.Context, subject domain.SubjectID) (privacy.Balance, error) {
	if subject.IsNil() {
		return privacy.Balance{}, dErrors.New(dErrors.CodeInvalidRequest, "subject is required")
	}
	bal, err := s.budget.Budget(ctx, subject)
	if err != nil {
		return privacy.Balance{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read privacy budget")
	}
	return bal, nil
}
