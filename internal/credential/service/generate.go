package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"devcred/internal/audit"
	"devcred/internal/credential/assembler"
	"devcred/internal/credential/domain/credential"
	"devcred/internal/credential/models"
	"devcred/internal/platform/tracer"
	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
	"devcred/pkg/platform/middleware/request"
	"devcred/pkg/platform/middleware/requesttime"
	"devcred/pkg/platform/sentinel"
)

// Generate validates, assembles and persists one credential. It never
// returns an error: failures yield Status invalid with Error and ErrorCode set.
func (s *Service) Generate(ctx context.Context, req models.GenerateRequest) models.GenerateResult {
	return s.generateTracked(ctx, req, "")
}

func (s *Service) generateTracked(ctx context.Context, req models.GenerateRequest, batchID domain.BatchID) models.GenerateResult {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanGenerate,
		tracer.String(tracer.AttrCredentialType, string(req.Type)),
	)
	key := s.track(ctx, req, batchID)
	defer s.untrack(key)

	res, err := s.generate(ctx, req)
	res.RequestID = req.RequestID
	res.GenerationTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Status = models.GenerateStatusInvalid
		res.Credential = nil
		res.ErrorCode = string(dErrors.CodeOf(err))
		if res.Error == "" {
			res.Error = err.Error()
		}
	}

	span.SetAttributes(
		tracer.String(tracer.AttrStatus, string(res.Status)),
		tracer.Int64(tracer.AttrProofBytes, int64(res.ProofSizeBytes)),
		tracer.Float64(tracer.AttrEpsilon, res.EpsilonSpent),
	)
	span.End(err)
	if s.metrics != nil {
		s.metrics.RecordGeneration(string(req.Type), string(res.Status), time.Since(start).Seconds())
	}
	return res
}

func (s *Service) generate(ctx context.Context, req models.GenerateRequest) (models.GenerateResult, error) {
	if _, err := models.ParseCredentialType(string(req.Type)); err != nil {
		return models.GenerateResult{}, err
	}

	verdict := s.validator.Run(req)
	res := models.GenerateResult{
		Warnings:     verdict.Report.Warnings(),
		PrivacyLevel: string(verdict.Level),
		Compliance:   verdict.Compliance,
	}
	if !verdict.Admissible() {
		res.Findings = verdict.Report.Errors()
		res.Error = verdict.Report.BlockingMessage()
		return res, dErrors.New(dErrors.CodeValidation, res.Error)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.verificationTimeout)
	defer cancel()

	out, err := s.assembler.Assemble(opCtx, assembler.Input{
		Request: req,
		Params:  verdict.Params,
		Level:   verdict.Level,
		Now:     requesttime.Now(ctx),
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeBudgetExceeded) {
			s.emitAudit(ctx, audit.Event{
				Action:         audit.ActionBudgetRejected,
				SubjectID:      req.Subject.String(),
				CredentialType: string(req.Type),
				Reason:         err.Error(),
				RequestID:      request.IDFromContext(ctx),
			})
		}
		return res, lifecycleError(opCtx, err, "credential assembly failed")
	}

	if _, err := s.store.Store(opCtx, out.Credential); err != nil {
		s.rollback(ctx, req, out)
		return res, lifecycleError(opCtx, err, "failed to store credential")
	}

	cred := out.Credential
	record := credential.ToModel(cred)
	res.Status = models.GenerateStatusReady
	res.Credential = &record
	res.ProofSizeBytes = out.ProofSize
	res.VerificationKeyRef = s.verificationKeyRef(cred.Type())
	res.EpsilonSpent = out.Reservations.Epsilon()

	s.emitAudit(ctx, audit.Event{
		Action:         audit.ActionCredentialGenerated,
		SubjectID:      cred.Subject().String(),
		CredentialID:   cred.ID().String(),
		CredentialType: string(cred.Type()),
		Outcome:        string(res.Status),
		Epsilon:        res.EpsilonSpent,
		RequestID:      request.IDFromContext(ctx),
	})
	s.logger.InfoContext(ctx, "credential generated",
		"credential_id", cred.ID().String(),
		"subject_id", cred.Subject().String(),
		"type", string(cred.Type()),
		"privacy_level", res.PrivacyLevel,
		"epsilon", res.EpsilonSpent,
	)
	return res, nil
}

// rollback returns the request's budget after a failure past the debit.
func (s *Service) rollback(ctx context.Context, req models.GenerateRequest, out *assembler.Output) {
	ctx = context.WithoutCancel(ctx)
	eps := out.Reservations.Epsilon()
	if err := out.Reservations.Release(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to release privacy budget",
			"subject_id", req.Subject.String(),
			"epsilon", eps,
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "privacy budget released",
		"subject_id", req.Subject.String(),
		"epsilon", eps,
	)
}

// lifecycleError maps deadline expiry to a timeout, store sentinels to their
// domain codes, and keeps codes already present.
func lifecycleError(ctx context.Context, err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return dErrors.Newf(dErrors.CodeTimeout, "%s: operation exceeded verification timeout", msg)
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if translated, ok := sentinel.Translate(err, msg); ok {
		return translated
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("%s: %v", msg, err))
}

// GenerateBatch generates every request and reports per-item results in
// request order. A failing item never cancels its siblings. The only error
// is batch_too_large or an empty batch.
func (s *Service) GenerateBatch(ctx context.Context, reqs []models.GenerateRequest, opts models.BatchOptions) (*models.BatchResult, error) {
	limit := opts.MaxBatchSize
	if limit <= 0 {
		limit = s.maxBatchSize
	}
	if len(reqs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "batch contains no requests")
	}
	if len(reqs) > limit {
		return nil, dErrors.Newf(dErrors.CodeBatchTooLarge,
			"batch of %d requests exceeds the maximum of %d", len(reqs), limit)
	}

	start := time.Now()
	batchID := domain.NewBatchID()
	ctx = requesttime.WithTime(ctx, requesttime.Now(ctx))
	ctx, span := s.tracer.Start(ctx, tracer.SpanBatch,
		tracer.Int64(tracer.AttrBatchSize, int64(len(reqs))),
	)

	results := make([]models.GenerateResult, len(reqs))
	if opts.Parallel {
		var g errgroup.Group
		g.SetLimit(limit)
		for i, req := range reqs {
			g.Go(func() error {
				results[i] = s.generateTracked(ctx, req, batchID)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, req := range reqs {
			results[i] = s.generateTracked(ctx, req, batchID)
		}
	}

	out := &models.BatchResult{
		BatchID:     batchID,
		Results:     results,
		TotalTimeMs: time.Since(start).Milliseconds(),
	}
	for _, r := range results {
		if r.Status == models.GenerateStatusReady {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
	}
	switch {
	case out.FailureCount == 0:
		out.OverallStatus = models.BatchStatusCompleted
	case out.SuccessCount == 0:
		out.OverallStatus = models.BatchStatusFailed
	default:
		out.OverallStatus = models.BatchStatusPartial
	}

	span.SetAttributes(tracer.String(tracer.AttrStatus, string(out.OverallStatus)))
	span.End(nil)
	if s.metrics != nil {
		s.metrics.RecordBatch(string(out.OverallStatus))
	}
	return out, nil
}

// track registers req under a key of its own; callers may reuse request IDs.
func (s *Service) track(ctx context.Context, req models.GenerateRequest, batchID domain.BatchID) uint64 {
	s.mu.Lock()
	s.pendingNext++
	key := s.pendingNext
	s.pending[key] = models.PendingRequest{
		RequestID: req.RequestID,
		BatchID:   batchID,
		Subject:   req.Subject,
		Type:      req.Type,
		StartedAt: requesttime.Now(ctx),
	}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.IncPending()
	}
	return key
}

func (s *Service) untrack(key uint64) {
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.DecPending()
	}
}

// Pending lists in-flight generations, oldest first.
func (s *Service) Pending() []models.PendingRequest {
	s.mu.Lock()
	out := make([]models.PendingRequest, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b models.PendingRequest) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		if a.RequestID < b.RequestID {
			return -1
		}
		if a.RequestID > b.RequestID {
			return 1
		}
		return 0
	})
	return out
}
