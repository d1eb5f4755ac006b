package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"devcred/internal/credential/models"
	dErrors "devcred/pkg/domain-errors"
	"devcred/pkg/platform/circuit"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultProbeInterval = 5 * time.Second
	maxResponseSize      = 1 << 20
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerSecond and Burst bound the request rate; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	FailureThreshold  int
	SuccessThreshold  int
	// ProbeInterval is how often a request is let through while the breaker is open.
	ProbeInterval time.Duration
	HTTPClient    HTTPDoer
	Logger        *slog.Logger
}

// HTTPClient posts proof requests to a proving service as JSON.
type HTTPClient struct {
	baseURL       string
	apiKey        string
	client        HTTPDoer
	limiter       *rate.Limiter
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewHTTPClient creates a rate-limited, breaker-protected prover client.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
		limiter: limiter,
		breaker: circuit.New("prover",
			circuit.WithFailureThreshold(cfg.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.SuccessThreshold),
			circuit.WithProbeInterval(cfg.ProbeInterval),
		),
		logger: logger,
	}
}

// BreakerOpen reports whether the prover circuit is open.
func (c *HTTPClient) BreakerOpen() bool {
	return c.breaker.IsOpen()
}

// proveResponse is the flat groth16 artifact
// {pi_a, pi_b, pi_c, protocol, curve, publicSignals}. Some backends nest the
// artifact under "proof" with publicSignals beside it; that form is accepted
// too.
type proveResponse struct {
	models.ProofArtifact
	Envelope *models.ProofArtifact `json:"proof,omitempty"`
}

func (r proveResponse) artifact() models.ProofArtifact {
	if r.Envelope == nil {
		return r.ProofArtifact
	}
	proof := *r.Envelope
	if len(proof.PublicSignals) == 0 {
		proof.PublicSignals = r.PublicSignals
	}
	return proof
}

// Prove requests a proof and checks its structure.
//
// Errors:
//   - timeout when ctx expires before or during the call
//   - unavailable when the breaker is open, the transport fails or the backend returns 5xx
//   - invalid_request when the backend rejects the witness (4xx)
//   - invalid_proof when the returned artifact is malformed
func (c *HTTPClient) Prove(ctx context.Context, req Request) (models.ProofArtifact, error) {
	if !c.breaker.Allow() {
		return models.ProofArtifact{}, dErrors.New(dErrors.CodeUnavailable, "prover circuit is open")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		// the limiter fails early when the wait would outlast the deadline
		return models.ProofArtifact{}, dErrors.Wrap(err, dErrors.CodeTimeout, "prover rate limit wait exceeds deadline")
	}

	proof, err := c.call(ctx, req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnavailable) || dErrors.HasCode(err, dErrors.CodeTimeout) {
			c.recordFailure(ctx, err)
		}
		return models.ProofArtifact{}, err
	}
	c.recordSuccess(ctx)
	return proof, nil
}

func (c *HTTPClient) call(ctx context.Context, req Request) (models.ProofArtifact, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return models.ProofArtifact{}, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "failed to encode witness")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prove", bytes.NewReader(body))
	if err != nil {
		return models.ProofArtifact{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return models.ProofArtifact{}, c.contextError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return models.ProofArtifact{}, c.contextError(ctx, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return models.ProofArtifact{}, dErrors.Newf(dErrors.CodeUnavailable, "prover unavailable: %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.ProofArtifact{}, dErrors.New(dErrors.CodeUnavailable, "prover rate limit exceeded")
	case resp.StatusCode >= 400:
		return models.ProofArtifact{}, dErrors.Newf(dErrors.CodeInvalidRequest, "prover rejected %s witness: %d", req.CircuitType, resp.StatusCode)
	}

	var out proveResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.ProofArtifact{}, dErrors.Wrap(err, dErrors.CodeInvalidProof, "failed to decode proof")
	}
	proof := out.artifact()
	if err := CheckStructure(proof); err != nil {
		return models.ProofArtifact{}, err
	}
	return proof, nil
}

func (c *HTTPClient) recordFailure(ctx context.Context, err error) {
	if c.breaker.RecordFailure().Opened {
		c.logger.ErrorContext(ctx, "circuit breaker opened",
			"circuit", c.breaker.Name(),
			"error", err,
		)
	}
}

func (c *HTTPClient) recordSuccess(ctx context.Context) {
	if c.breaker.RecordSuccess().Closed {
		c.logger.InfoContext(ctx, "circuit breaker closed",
			"circuit", c.breaker.Name(),
		)
	}
}

func (c *HTTPClient) contextError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "prover call timed out")
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "prover call cancelled")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "prover call failed")
}
