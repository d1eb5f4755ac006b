// Package metrics provides Prometheus metrics for credential issuance and
// verification.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	GenerationsTotal          *prometheus.CounterVec // by credential type and status
	GenerationDurationSeconds *prometheus.HistogramVec
	BatchesTotal              *prometheus.CounterVec // by overall status
	EpsilonDebitedTotal       prometheus.Counter
	BudgetRejectionsTotal     prometheus.Counter
	VerificationsTotal        *prometheus.CounterVec // by validity
	TrustScore                prometheus.Histogram
	RevocationsTotal          prometheus.Counter
	ProverDurationSeconds     *prometheus.HistogramVec // by outcome
	PendingRequests           prometheus.Gauge
}

// New registers the metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GenerationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devcred_credential_generations_total",
			Help: "Credential generations by type and result status",
		}, []string{"type", "status"}),

		GenerationDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devcred_credential_generation_duration_seconds",
			Help:    "End-to-end generation latency by credential type",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"type"}),

		BatchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devcred_credential_batches_total",
			Help: "Batch generations by overall status",
		}, []string{"status"}),

		EpsilonDebitedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "devcred_privacy_epsilon_debited_total",
			Help: "Total epsilon debited from subject budgets",
		}),

		BudgetRejectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "devcred_privacy_budget_rejections_total",
			Help: "Debits refused because they would exceed the subject budget",
		}),

		VerificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devcred_credential_verifications_total",
			Help: "Verifications by outcome",
		}, []string{"valid"}),

		TrustScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "devcred_credential_trust_score",
			Help:    "Trust scores of verified credentials",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),

		RevocationsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "devcred_credential_revocations_total",
			Help: "Credentials moved to revoked",
		}),

		ProverDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devcred_prover_duration_seconds",
			Help:    "Proof generation latency by outcome",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),

		PendingRequests: f.NewGauge(prometheus.GaugeOpts{
			Name: "devcred_credential_pending_requests",
			Help: "Generations currently in flight",
		}),
	}
}

func (m *Metrics) RecordGeneration(credType, status string, durationSeconds float64) {
	m.GenerationsTotal.WithLabelValues(credType, status).Inc()
	m.GenerationDurationSeconds.WithLabelValues(credType).Observe(durationSeconds)
}

func (m *Metrics) RecordBatch(status string) {
	m.BatchesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordVerification(valid bool, trustScore float64) {
	label := "false"
	if valid {
		label = "true"
		m.TrustScore.Observe(trustScore)
	}
	m.VerificationsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncrementRevocations() {
	m.RevocationsTotal.Inc()
}

func (m *Metrics) ObserveProver(outcome string, durationSeconds float64) {
	m.ProverDurationSeconds.WithLabelValues(outcome).Observe(durationSeconds)
}

// EpsilonDebited implements privacy.Observer.
func (m *Metrics) EpsilonDebited(epsilon float64) {
	m.EpsilonDebitedTotal.Add(epsilon)
}

// BudgetRejected implements privacy.Observer.
func (m *Metrics) BudgetRejected() {
	m.BudgetRejectionsTotal.Inc()
}

func (m *Metrics) IncPending() { m.PendingRequests.Inc() }
func (m *Metrics) DecPending() { m.PendingRequests.Dec() }
