// Package health serves the liveness, readiness and status probes.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"devcred/pkg/platform/httputil"
)

const checkTimeout = 2 * time.Second

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc pings one dependency: the credential database, the Redis ledger
// or the Kafka audit sink.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	fn       CheckFunc
	optional bool
}

// Handler serves the probes. Checks may be registered while serving.
type Handler struct {
	started     time.Time
	environment string
	now         func() time.Time

	mu     sync.RWMutex
	checks []check
}

func New(environment string) *Handler {
	return &Handler{started: time.Now(), environment: environment, now: time.Now}
}

// RegisterCheck adds a dependency that must be up for the service to be
// ready. Registering a name twice replaces the earlier check.
func (h *Handler) RegisterCheck(name string, fn CheckFunc) {
	h.add(check{name: name, fn: fn})
}

// RegisterOptional adds a dependency whose failure marks the service
// degraded but still ready.
func (h *Handler) RegisterOptional(name string, fn CheckFunc) {
	h.add(check{name: name, fn: fn, optional: true})
}

func (h *Handler) add(c check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = slices.DeleteFunc(h.checks, func(e check) bool { return e.name == c.name })
	h.checks = append(h.checks, c)
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

// ReadinessResponse reports "ready", "degraded" or "not_ready". Checks maps
// each dependency to "up" or "down: <reason>".
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleReadiness runs every check concurrently, each under its own deadline.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := slices.Clone(h.checks)
	h.mu.RUnlock()

	errs := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Go(func() {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			errs[i] = c.fn(ctx)
		})
	}
	wg.Wait()

	res := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
	status := http.StatusOK
	for i, c := range checks {
		if errs[i] == nil {
			res.Checks[c.name] = "up"
			continue
		}
		res.Checks[c.name] = "down: " + errs[i].Error()
		switch {
		case !c.optional:
			res.Status = "not_ready"
			status = http.StatusServiceUnavailable
		case res.Status == "ready":
			res.Status = "degraded"
		}
	}
	httputil.WriteJSON(w, status, res)
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Timestamp     string `json:"timestamp"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
		Timestamp:     now.UTC().Format(time.RFC3339),
	})
}
