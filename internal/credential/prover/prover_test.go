package prover

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"devcred/internal/credential/models"
	dErrors "devcred/pkg/domain-errors"
)

func validArtifact(t *testing.T) models.ProofArtifact {
	t.Helper()
	p, err := NewSimulated().Prove(context.Background(), Request{
		CircuitType:  models.CredentialTypeRepository,
		PublicInputs: map[string]any{"min": 11, "max": 50},
	})
	require.NoError(t, err)
	return p
}

func TestCheckStructure(t *testing.T) {
	valid := validArtifact(t)
	require.NoError(t, CheckStructure(valid))

	outOfField := baseField.String()

	tests := []struct {
		name   string
		mutate func(p *models.ProofArtifact)
	}{
		{"zero artifact", func(p *models.ProofArtifact) { *p = models.ProofArtifact{} }},
		{"unknown protocol", func(p *models.ProofArtifact) { p.Protocol = "bulletproofs" }},
		{"unknown curve", func(p *models.ProofArtifact) { p.Curve = "bls12-381" }},
		{"short pi_a", func(p *models.ProofArtifact) { p.PiA = p.PiA[:1] }},
		{"projective pi_a", func(p *models.ProofArtifact) { p.PiA[2] = "2" }},
		{"non-decimal pi_c", func(p *models.ProofArtifact) { p.PiC[0] = "0xabc" }},
		{"pi_c outside field", func(p *models.ProofArtifact) { p.PiC[1] = outOfField }},
		{"pi_b wrong z", func(p *models.ProofArtifact) { p.PiB[2] = []string{"0", "1"} }},
		{"pi_b odd pair", func(p *models.ProofArtifact) { p.PiB[0] = []string{"1"} }},
		{"negative signal", func(p *models.ProofArtifact) { p.PublicSignals = []string{"-1"} }},
		{"signal outside scalar field", func(p *models.ProofArtifact) { p.PublicSignals = []string{scalarField.String()} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid.Clone()
			tt.mutate(&p)
			err := CheckStructure(p)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidProof))
		})
	}
}

func TestCheckStructureAcceptsAffinePoints(t *testing.T) {
	p := validArtifact(t)
	p.PiA = p.PiA[:2]
	p.PiB = p.PiB[:2]
	p.PiC = p.PiC[:2]
	p.Curve = "bn254"
	assert.NoError(t, CheckStructure(p))
}

func TestSimulatedIsDeterministic(t *testing.T) {
	a := validArtifact(t)
	b := validArtifact(t)
	assert.Equal(t, a, b)
	assert.Equal(t, models.ProtocolSimulated, a.Protocol)
	assert.False(t, a.ZeroKnowledge())
	// keys sorted: max, min
	assert.Equal(t, []string{"50", "11"}, a.PublicSignals)

	other, err := NewSimulated().Prove(context.Background(), Request{
		CircuitType:  models.CredentialTypeLanguage,
		PublicInputs: map[string]any{"min": 11, "max": 50},
	})
	require.NoError(t, err)
	assert.NotEqual(t, a.PiA, other.PiA)
}

func TestSimulatedHonoursContext(t *testing.T) {
	sim := &Simulated{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := sim.Prove(ctx, Request{CircuitType: models.CredentialTypeRepository})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestSize(t *testing.T) {
	assert.Zero(t, Size(models.ProofArtifact{}))
	p := validArtifact(t)
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, len(raw), Size(p))
}

type HTTPClientSuite struct {
	suite.Suite
	calls   atomic.Int32
	handler http.HandlerFunc
	server  *httptest.Server
}

func TestHTTPClientSuite(t *testing.T) {
	suite.Run(t, new(HTTPClientSuite))
}

func (s *HTTPClientSuite) SetupTest() {
	s.calls.Store(0)
	s.handler = nil
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.handler(w, r)
	}))
}

func (s *HTTPClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *HTTPClientSuite) client(threshold int) *HTTPClient {
	return NewHTTPClient(HTTPConfig{
		BaseURL:          s.server.URL + "/",
		APIKey:           "test-key",
		FailureThreshold: threshold,
		SuccessThreshold: 1,
		ProbeInterval:    time.Hour,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func (s *HTTPClientSuite) respond(status int, body any) {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func (s *HTTPClientSuite) request() Request {
	return Request{
		CircuitType:  models.CredentialTypeRepository,
		Witness:      map[string]any{"actualValue": 42},
		PublicInputs: map[string]any{"min": 11, "max": 50},
	}
}

func (s *HTTPClientSuite) TestProveSuccess() {
	artifact := validArtifact(s.T())
	var gotKey, gotPath string
	var gotBody Request
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(artifact)
	}

	proof, err := s.client(3).Prove(context.Background(), s.request())
	s.Require().NoError(err)
	s.Equal(artifact, proof)
	s.Equal("test-key", gotKey)
	s.Equal("/prove", gotPath)
	s.Equal(models.CredentialTypeRepository, gotBody.CircuitType)
}

func (s *HTTPClientSuite) TestFlatGroth16Response() {
	artifact := validArtifact(s.T())
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"pi_a": ["` + artifact.PiA[0] + `", "` + artifact.PiA[1] + `", "1"],
			"pi_b": [["` + artifact.PiB[0][0] + `", "` + artifact.PiB[0][1] + `"], ["` + artifact.PiB[1][0] + `", "` + artifact.PiB[1][1] + `"], ["1", "0"]],
			"pi_c": ["` + artifact.PiC[0] + `", "` + artifact.PiC[1] + `", "1"],
			"protocol": "groth16",
			"curve": "bn128",
			"publicSignals": ["11", "50"]
		}`))
	}

	proof, err := s.client(3).Prove(context.Background(), s.request())
	s.Require().NoError(err)
	s.Equal(models.ProtocolGroth16, proof.Protocol)
	s.Equal("bn128", proof.Curve)
	s.Equal(artifact.PiA[0], proof.PiA[0])
	s.Equal([]string{"11", "50"}, proof.PublicSignals)
}

func (s *HTTPClientSuite) TestEnvelopeWithTopLevelPublicSignals() {
	artifact := validArtifact(s.T())
	signals := artifact.PublicSignals
	artifact.PublicSignals = nil
	s.respond(http.StatusOK, map[string]any{"proof": artifact, "publicSignals": signals})

	proof, err := s.client(3).Prove(context.Background(), s.request())
	s.Require().NoError(err)
	s.Equal(signals, proof.PublicSignals)
}

func (s *HTTPClientSuite) TestStatusMapping() {
	s.Run("5xx is unavailable", func() {
		s.respond(http.StatusBadGateway, map[string]string{"error": "down"})
		_, err := s.client(3).Prove(context.Background(), s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
	s.Run("429 is unavailable", func() {
		s.respond(http.StatusTooManyRequests, map[string]string{"error": "slow down"})
		_, err := s.client(3).Prove(context.Background(), s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
	s.Run("4xx is invalid request", func() {
		s.respond(http.StatusUnprocessableEntity, map[string]string{"error": "bad witness"})
		_, err := s.client(3).Prove(context.Background(), s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	})
	s.Run("malformed artifact is invalid proof", func() {
		s.respond(http.StatusOK, map[string]any{"protocol": "groth16", "curve": "bn128", "pi_a": []string{"1"}})
		_, err := s.client(3).Prove(context.Background(), s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidProof))
	})
	s.Run("undecodable body is invalid proof", func() {
		s.handler = func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("not json")) }
		_, err := s.client(3).Prove(context.Background(), s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidProof))
	})
}

func (s *HTTPClientSuite) TestTimeout() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.client(3).Prove(ctx, s.request())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *HTTPClientSuite) TestBreakerOpensAndShortCircuits() {
	s.respond(http.StatusServiceUnavailable, map[string]string{"error": "down"})
	c := s.client(1)

	_, err := c.Prove(context.Background(), s.request())
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.True(c.BreakerOpen())

	_, err = c.Prove(context.Background(), s.request())
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(int32(1), s.calls.Load(), "open breaker must not reach the backend")
}

func (s *HTTPClientSuite) TestBreakerProbeCloses() {
	s.respond(http.StatusServiceUnavailable, map[string]string{"error": "down"})
	c := NewHTTPClient(HTTPConfig{
		BaseURL:          s.server.URL,
		FailureThreshold: 1,
		SuccessThreshold: 1,
		ProbeInterval:    time.Millisecond,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	_, _ = c.Prove(context.Background(), s.request())
	s.Require().True(c.BreakerOpen())

	s.respond(http.StatusOK, validArtifact(s.T()))
	time.Sleep(5 * time.Millisecond)
	_, err := c.Prove(context.Background(), s.request())
	s.Require().NoError(err)
	s.False(c.BreakerOpen())
}

func (s *HTTPClientSuite) TestClientErrorsDoNotOpenBreaker() {
	s.respond(http.StatusBadRequest, map[string]string{"error": "bad"})
	c := s.client(1)
	_, _ = c.Prove(context.Background(), s.request())
	s.False(c.BreakerOpen())
}
