package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devcred/internal/privacy"
)

var _ privacy.Observer = (*Metrics)(nil)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordGeneration("repository", "ready", 0.2)
	m.RecordGeneration("repository", "invalid", 0.01)
	m.RecordGeneration("repository", "ready", 0.3)
	assert.InDelta(t, 2, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("repository", "ready")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("repository", "invalid")), 1e-9)

	m.EpsilonDebited(0.5)
	m.EpsilonDebited(0.25)
	assert.InDelta(t, 0.75, testutil.ToFloat64(m.EpsilonDebitedTotal), 1e-9)

	m.BudgetRejected()
	assert.InDelta(t, 1, testutil.ToFloat64(m.BudgetRejectionsTotal), 1e-9)

	m.RecordVerification(true, 95)
	m.RecordVerification(false, 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.VerificationsTotal.WithLabelValues("true")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.VerificationsTotal.WithLabelValues("false")), 1e-9)

	m.IncPending()
	m.IncPending()
	m.DecPending()
	assert.InDelta(t, 1, testutil.ToFloat64(m.PendingRequests), 1e-9)
}

func TestNewOnSeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
