package validation

import (
	"devcred/internal/credential/models"
	"devcred/internal/findings"
	"devcred/internal/privacy"
)

// Pipeline runs the structural, constraint and compliance passes in order.
type Pipeline struct {
	constraints ConstraintConfig
	standards   []Standard
	policy      privacy.Policy
	defaults    privacy.Parameters
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConstraints overrides the proving-field limits.
func WithConstraints(c ConstraintConfig) Option {
	return func(p *Pipeline) { p.constraints = c }
}

// WithStandards replaces the compliance standards.
func WithStandards(standards ...Standard) Option {
	return func(p *Pipeline) { p.standards = standards }
}

// WithAnonymityPolicy configures l-diversity and t-closeness.
func WithAnonymityPolicy(policy privacy.Policy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithDefaultParameters sets the privacy parameters used for unset request fields.
func WithDefaultParameters(d privacy.Parameters) Option {
	return func(p *Pipeline) { p.defaults = d }
}

// New builds a pipeline with BN254 constraints and the default standards.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		constraints: DefaultConstraints(),
		standards:   DefaultStandards(),
		defaults:    privacy.DefaultParameters(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the combined verdict.
type Result struct {
	Report     findings.Report
	Compliance []models.ComplianceStatus
	// Params are the request's privacy parameters with defaults applied.
	Params privacy.Parameters
	Level  privacy.Level
}

// Admissible reports whether no critical or high finding was raised.
func (r Result) Admissible() bool {
	return !r.Report.Blocking()
}

// ResolveParameters applies the pipeline defaults to a request's parameters.
func (p *Pipeline) ResolveParameters(req models.GenerateRequest) privacy.Parameters {
	return req.Privacy.WithDefaults(p.defaults)
}

// Run validates req. Every pass runs, so a structurally broken request still
// reports its constraint and compliance findings in the same report.
func (p *Pipeline) Run(req models.GenerateRequest) Result {
	params := p.ResolveParameters(req)

	compliance, statuses := Compliance(Input{Request: req, Params: params}, p.standards)
	reports := []findings.Report{Structural(req), Constraints(req, p.constraints), compliance}

	if req.Type == models.CredentialTypeCollaboration && req.Collaboration != nil {
		classes := req.Collaboration.EquivalenceClasses
		reports = append(reports,
			privacy.LDiversity(classes, p.policy.L, p.policy.LMandatory),
			privacy.TCloseness(classes, p.policy.T, p.policy.TMandatory),
		)
	}

	report := findings.Merge(reports...)
	return Result{
		Report:     report,
		Compliance: statuses,
		Params:     params,
		Level:      privacy.LevelFor(report),
	}
}
