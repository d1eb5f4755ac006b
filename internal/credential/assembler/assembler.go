// Package assembler builds typed credentials from validated requests.
//
// Each credential type has its own constructor. True values are bucketed
// into range proofs, scalar releases go through the privacy engine, and the
// prover receives the witness before the claims are reduced to their public
// form inside the Credential.
package assembler

import (
	"context"
	"log/slog"
	"time"

	"devcred/internal/aggregate"
	"devcred/internal/claims"
	"devcred/internal/credential/domain/credential"
	"devcred/internal/credential/domain/shared"
	"devcred/internal/credential/models"
	"devcred/internal/credential/prover"
	"devcred/internal/privacy"
	"devcred/internal/validation"
	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
	dedupe "devcred/pkg/platform/strings"
)

// Commitment domains keep repository and collaborator commitments apart.
const (
	domainRepository   = "repository"
	domainCollaborator = "collaborator"
	domainGroup        = "collaborator_set"
)

// Assembler turns validated requests into credentials.
type Assembler struct {
	committer  *claims.Committer
	engine     aggregate.Privatizer
	aggregator *aggregate.Aggregator
	prover     prover.Prover
	issuer     models.Issuer
	defaultTTL time.Duration
	logger     *slog.Logger
}

// Option configures the Assembler.
type Option func(*Assembler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithDefaultTTL sets the lifetime used when a request does not ask for one.
// Zero issues credentials without expiry.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(a *Assembler) {
		a.defaultTTL = ttl
	}
}

// New creates an assembler.
func New(committer *claims.Committer, engine aggregate.Privatizer, aggregator *aggregate.Aggregator, p prover.Prover, issuer models.Issuer, opts ...Option) *Assembler {
	a := &Assembler{
		committer:  committer,
		engine:     engine,
		aggregator: aggregator,
		prover:     p,
		issuer:     issuer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Input is a request that already passed the validation pipeline.
type Input struct {
	Request models.GenerateRequest
	Params  privacy.Parameters
	Level   privacy.Level
	Now     time.Time
}

// Output is an assembled credential with the budget debits made for it.
// The caller releases Reservations if persisting the credential fails.
type Output struct {
	Credential   *credential.Credential
	Reservations privacy.Reservations
	ProofSize    int
}

// Assemble builds the claims for the request type, obtains a proof and wraps
// both into a ready credential. Debits made along the way are released
// before any error is returned.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Output, error) {
	cs, reservations, err := a.buildClaims(ctx, in)
	if err != nil {
		return nil, err
	}

	proof, err := a.prover.Prove(ctx, prover.Request{
		CircuitType:  cs.Type(),
		Witness:      cs.WitnessMap(),
		PublicInputs: cs.ToMap(),
	})
	if err != nil {
		a.release(ctx, in.Request.Subject, reservations)
		return nil, err
	}

	cred, err := a.wrap(in, cs, proof)
	if err != nil {
		a.release(ctx, in.Request.Subject, reservations)
		return nil, err
	}
	return &Output{Credential: cred, Reservations: reservations, ProofSize: prover.Size(proof)}, nil
}

func (a *Assembler) buildClaims(ctx context.Context, in Input) (credential.ClaimSet, privacy.Reservations, error) {
	req := in.Request
	switch req.Type {
	case models.CredentialTypeRepository:
		if req.Repository == nil {
			return nil, nil, missingInput(req.Type)
		}
		return a.repository(ctx, req.Subject, req.Repository, in.Params)
	case models.CredentialTypeLanguage:
		if req.Language == nil {
			return nil, nil, missingInput(req.Type)
		}
		return a.language(ctx, req.Subject, req.Language, in.Params, in.Now)
	case models.CredentialTypeCollaboration:
		if req.Collaboration == nil {
			return nil, nil, missingInput(req.Type)
		}
		return a.collaboration(ctx, req.Subject, req.Collaboration, in.Params)
	case models.CredentialTypeConsistency:
		if req.Consistency == nil {
			return nil, nil, missingInput(req.Type)
		}
		return a.consistency(ctx, req.Subject, req.Consistency, in.Params)
	case models.CredentialTypeAggregate:
		if req.Aggregate == nil {
			return nil, nil, missingInput(req.Type)
		}
		return a.profile(ctx, req.Subject, req.Aggregate, in.Params, in.Now)
	default:
		return nil, nil, dErrors.Newf(dErrors.CodeUnsupportedType, "unsupported credential type %q", req.Type)
	}
}

func (a *Assembler) repository(ctx context.Context, subject domain.SubjectID, in *models.RepositoryInput, params privacy.Parameters) (credential.ClaimSet, privacy.Reservations, error) {
	commits, err := claims.CommitLadder.Encode(int64(dedupe.CountDistinct(in.CommitHashes)))
	if err != nil {
		return nil, nil, err
	}
	lines, err := claims.LinesLadder.Encode(in.LinesAdded + in.LinesDeleted)
	if err != nil {
		return nil, nil, err
	}

	noisy, res, err := a.engine.Privatize(ctx, subject, []float64{float64(in.ActiveDays)}, params)
	if err != nil {
		return nil, nil, err
	}

	cs := credential.NewRepositoryClaims(
		a.committer.Commit(domainRepository, in.Name),
		commits,
		lines,
		noisy[0],
		in.MerkleRoot,
	)
	return cs, privacy.Reservations{res}, nil
}

func (a *Assembler) language(ctx context.Context, subject domain.SubjectID, in *models.LanguageInput, params privacy.Parameters, now time.Time) (credential.ClaimSet, privacy.Reservations, error) {
	loc, err := claims.LinesLadder.Encode(in.LinesOfCode)
	if err != nil {
		return nil, nil, err
	}

	scoring := a.aggregator.Scoring()
	score := scoring.Score(aggregate.LanguageActivity{
		Language:          in.Language,
		LinesOfCode:       in.LinesOfCode,
		Commits:           in.Commits,
		LastActivity:      in.LastActivity,
		QualityIndicators: in.QualityIndicators,
	}, now)

	noisy, res, err := a.engine.Privatize(ctx, subject, []float64{score.Score}, params)
	if err != nil {
		return nil, nil, err
	}
	level := scoring.Thresholds.LevelFor(noisy[0])

	return credential.NewLanguageClaims(score.Language, loc, noisy[0], string(level)), privacy.Reservations{res}, nil
}

func (a *Assembler) collaboration(ctx context.Context, subject domain.SubjectID, in *models.CollaborationInput, params privacy.Parameters) (credential.ClaimSet, privacy.Reservations, error) {
	anon := validation.Anonymity(in, params)
	if err := privacy.CheckKAnonymity(anon); err != nil {
		return nil, nil, err
	}

	collaborators := dedupe.DedupeFold(in.Collaborators)
	members := make([]claims.Commitment, len(collaborators))
	for i, id := range collaborators {
		members[i] = a.committer.Commit(domainCollaborator, id)
	}
	groupSize, err := claims.GroupSizeLadder.Encode(int64(len(collaborators)))
	if err != nil {
		return nil, nil, err
	}

	noisy, res, err := a.engine.Privatize(ctx, subject, []float64{in.SubjectContribution}, params)
	if err != nil {
		return nil, nil, err
	}

	cs := credential.NewCollaborationClaims(
		a.committer.Commit(domainRepository, in.Repository),
		a.committer.CommitSet(domainGroup, members),
		groupSize,
		int64(anon.K),
		noisy[0],
	)
	return cs, privacy.Reservations{res}, nil
}

func (a *Assembler) consistency(ctx context.Context, subject domain.SubjectID, in *models.ConsistencyInput, params privacy.Parameters) (credential.ClaimSet, privacy.Reservations, error) {
	activeDays, err := claims.ActiveDaysLadder.Encode(in.ActiveDays)
	if err != nil {
		return nil, nil, err
	}
	streak, err := claims.ActiveDaysLadder.Encode(in.LongestStreakDays)
	if err != nil {
		return nil, nil, err
	}

	// released as a percentage of weeks with activity
	var ratio float64
	if in.TotalWeeks > 0 {
		ratio = 100 * float64(in.ActiveWeeks) / float64(in.TotalWeeks)
	}
	noisy, res, err := a.engine.Privatize(ctx, subject, []float64{ratio}, params)
	if err != nil {
		return nil, nil, err
	}

	return credential.NewConsistencyClaims(noisy[0], activeDays, streak), privacy.Reservations{res}, nil
}

func (a *Assembler) profile(ctx context.Context, subject domain.SubjectID, in *models.AggregateInput, params privacy.Parameters, now time.Time) (credential.ClaimSet, privacy.Reservations, error) {
	p, reservations, err := a.aggregator.Aggregate(ctx, subject, in.Repositories, params, now)
	if err != nil {
		return nil, nil, err
	}

	sources := make([]string, len(in.SourceCredentials))
	for i, id := range in.SourceCredentials {
		sources[i] = id.String()
	}
	cs := credential.NewAggregateClaims(credential.ProfileScores{
		Overall:           p.OverallScore,
		ExpertiseDepth:    p.ExpertiseDepth,
		Growth:            p.Growth,
		Leadership:        p.Leadership,
		IndustryRelevance: p.IndustryRelevance,
	}, string(p.Level), int64(p.RepositoryCount), sources)
	return cs, reservations, nil
}

func (a *Assembler) wrap(in Input, cs credential.ClaimSet, proof models.ProofArtifact) (*credential.Credential, error) {
	issuedAt, err := shared.NewIssuedAt(in.Now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "invalid issuance time")
	}

	ttl := a.defaultTTL
	if in.Request.ExpiresInSeconds > 0 {
		ttl = time.Duration(in.Request.ExpiresInSeconds) * time.Second
	}
	expiresAt := shared.NoExpiration()
	if ttl > 0 {
		expiresAt, err = shared.NewExpiresAtAfter(in.Now.Add(ttl), issuedAt)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "invalid expiry")
		}
	}

	cred, err := credential.New(credential.Attributes{
		ID:           domain.NewCredentialID(),
		Issuer:       a.issuer,
		Subject:      in.Request.Subject,
		Claims:       cs,
		Proof:        proof,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
		Metadata:     in.Request.Metadata,
		PrivacyLevel: in.Level,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assemble credential")
	}
	return cred, nil
}

// release runs even when ctx has expired; the rollback must reach the ledger.
func (a *Assembler) release(ctx context.Context, subject domain.SubjectID, rs privacy.Reservations) {
	if err := rs.Release(context.WithoutCancel(ctx)); err != nil {
		a.logger.ErrorContext(ctx, "failed to release privacy budget",
			"subject_id", subject.String(),
			"epsilon", rs.Epsilon(),
			"error", err,
		)
	}
}

func missingInput(t models.CredentialType) error {
	return dErrors.Newf(dErrors.CodeInvalidRequest, "%s input is required", t)
}
