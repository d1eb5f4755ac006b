// Package service runs the credential lifecycle: generate, verify, revoke.
//
// Generation is validate, assemble, persist. Request failures never surface
// as Go errors from Generate; they come back as invalid results carrying the
// joined finding or lifecycle message. Budget debited for a request that
// later fails is released before the result is returned.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"devcred/internal/audit"
	"devcred/internal/credential/assembler"
	"devcred/internal/credential/domain/credential"
	"devcred/internal/credential/metrics"
	"devcred/internal/credential/models"
	"devcred/internal/platform/tracer"
	"devcred/internal/privacy"
	"devcred/internal/validation"
	"devcred/internal/vcdoc"
	"devcred/pkg/domain"
)

// Store is the credential storage contract.
type Store interface {
	Store(ctx context.Context, c *credential.Credential) (domain.CredentialID, error)
	Retrieve(ctx context.Context, id domain.CredentialID) (*credential.Credential, error)
	List(ctx context.Context, subject domain.SubjectID) ([]domain.CredentialID, error)
	Delete(ctx context.Context, id domain.CredentialID) (bool, error)
	UpdateStatus(ctx context.Context, id domain.CredentialID, status models.Status) (bool, error)
}

// Validator gates generation requests.
type Validator interface {
	Run(req models.GenerateRequest) validation.Result
}

// Assembler builds a credential and reports the budget it debited.
type Assembler interface {
	Assemble(ctx context.Context, in assembler.Input) (*assembler.Output, error)
}

// BudgetReader exposes a subject's privacy budget.
type BudgetReader interface {
	Budget(ctx context.Context, subject domain.SubjectID) (privacy.Balance, error)
}

// Exporter renders credentials as standard VC documents.
type Exporter interface {
	ToStandard(c *credential.Credential) (*vcdoc.Document, error)
}

// AuditPublisher emits lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	defaultVerificationTimeout = 30 * time.Second
	defaultMaxBatchSize        = 10
	defaultVerificationKeyBase = "devcred:vk"
)

// Service is the credential manager.
type Service struct {
	store     Store
	validator Validator
	assembler Assembler
	budget    BudgetReader

	exporter            Exporter
	auditor             AuditPublisher
	metrics             *metrics.Metrics
	tracer              tracer.Tracer
	logger              *slog.Logger
	verificationTimeout time.Duration
	maxBatchSize        int
	verificationKeyBase string

	mu          sync.Mutex
	pending     map[uint64]models.PendingRequest
	pendingNext uint64
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditor(auditor AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithExporter(e Exporter) Option {
	return func(s *Service) {
		s.exporter = e
	}
}

// WithVerificationTimeout bounds every prover and storage call made for one
// request.
func WithVerificationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.verificationTimeout = d
		}
	}
}

// WithMaxBatchSize sets the batch limit used when BatchOptions leaves it unset.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithVerificationKeyBase sets the prefix of verification key references.
func WithVerificationKeyBase(base string) Option {
	return func(s *Service) {
		if base != "" {
			s.verificationKeyBase = base
		}
	}
}

// New creates the credential manager.
func New(store Store, validator Validator, asm Assembler, budget BudgetReader, opts ...Option) *Service {
	s := &Service{
		store:               store,
		validator:           validator,
		assembler:           asm,
		budget:              budget,
		tracer:              tracer.NewNoop(),
		logger:              slog.Default(),
		verificationTimeout: defaultVerificationTimeout,
		maxBatchSize:        defaultMaxBatchSize,
		verificationKeyBase: defaultVerificationKeyBase,
		pending:             make(map[uint64]models.PendingRequest),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) verificationKeyRef(t models.CredentialType) string {
	return s.verificationKeyBase + "/" + string(t) + "/v" + models.CredentialVersion
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"action", event.Action,
			"subject_id", event.SubjectID,
		)
	}
}
