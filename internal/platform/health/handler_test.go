package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadiness(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("store", func(context.Context) error { return nil })
		h.RegisterCheck("ledger", func(context.Context) error { return nil })

		w := serve(h, "/health/ready")

		assert.Equal(t, http.StatusOK, w.Code)
		var res ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, map[string]string{"store": "up", "ledger": "up"}, res.Checks)
	})

	t.Run("one dependency down", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("store", func(context.Context) error { return nil })
		h.RegisterCheck("ledger", func(context.Context) error { return errors.New("connection refused") })

		w := serve(h, "/health/ready")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var res ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, "not_ready", res.Status)
		assert.Equal(t, "down: connection refused", res.Checks["ledger"])
	})

	t.Run("optional dependency down is degraded", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("store", func(context.Context) error { return nil })
		h.RegisterOptional("audit", func(context.Context) error { return errors.New("no brokers") })

		w := serve(h, "/health/ready")

		assert.Equal(t, http.StatusOK, w.Code)
		var res ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, "degraded", res.Status)
		assert.Equal(t, "down: no brokers", res.Checks["audit"])
	})

	t.Run("re-registering replaces the check", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("store", func(context.Context) error { return errors.New("old") })
		h.RegisterCheck("store", func(context.Context) error { return nil })

		assert.Equal(t, http.StatusOK, serve(h, "/health/ready").Code)
	})

	t.Run("checks get a deadline", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("slow", func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			if !ok {
				return errors.New("no deadline")
			}
			return nil
		})
		assert.Equal(t, http.StatusOK, serve(h, "/health/ready").Code)
	})
}

func TestLivenessAndStatus(t *testing.T) {
	h := New("staging")
	h.now = func() time.Time { return h.started.Add(90 * time.Second) }

	assert.Equal(t, http.StatusOK, serve(h, "/health/live").Code)

	w := serve(h, "/health")
	var res StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "staging", res.Environment)
	assert.Equal(t, Version, res.Version)
	assert.Equal(t, int64(90), res.UptimeSeconds)
}
