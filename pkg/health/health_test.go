package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyCheck(context.Context) error { return nil }

func brokenCheck(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

// trip drives a probe past its failure threshold.
func trip(t *testing.T, p *probe) {
	t.Helper()
	for i := 0; i < defaultFailAfter; i++ {
		p.observe(context.Background())
	}
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestLiveEndpointHealthy(t *testing.T) {
	h := New()
	h.AddLivenessCheck("one", time.Second, healthyCheck)
	h.AddLivenessCheck("two", time.Second, healthyCheck)

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decodeStatus(t, w).Status)
}

func TestLiveEndpointReportsTrippedProbe(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, brokenCheck("connection refused"))
	trip(t, h.live[0])

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decodeStatus(t, w)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestProbeToleratesFailuresBelowThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("flaky", time.Second, brokenCheck("blip"))

	p := h.live[0]
	for i := 0; i < defaultFailAfter-1; i++ {
		p.observe(context.Background())
	}

	ok, err := p.status()
	assert.True(t, ok, "probe should stay healthy below the failure threshold")
	assert.EqualError(t, err, "blip")
}

func TestProbeRecoversOnFirstSuccess(t *testing.T) {
	broken := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if broken {
			return errors.New("down")
		}
		return nil
	})

	p := h.live[0]
	trip(t, p)
	ok, _ := p.status()
	require.False(t, ok)

	broken = false
	p.observe(context.Background())
	ok, err := p.status()
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestReadyEndpointNeedsManualGate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, healthyCheck)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decodeStatus(t, w).Checks, "_readiness")

	h.SetReady(true)

	w = httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeStatus(t, w).Status)
}

func TestReadyEndpointGateClosesAgain(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.SetReady(false)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyEndpointNamesOnlyFailingProbes(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, healthyCheck)
	h.AddReadinessCheck("cache", time.Second, brokenCheck("cache down"))
	h.SetReady(true)
	trip(t, h.readz[1])

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decodeStatus(t, w)
	assert.Contains(t, body.Checks, "cache")
	assert.NotContains(t, body.Checks, "db")
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, brokenCheck("down"))

	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.True(t, h.IsReady(), "probes start healthy until tripped")

	trip(t, h.readz[0])
	assert.False(t, h.IsReady())
}

func TestStopIsIdempotent(t *testing.T) {
	h := New()
	h.AddLivenessCheck("noop", time.Second, healthyCheck)

	h.Start(context.Background(), 50*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestEndpointsWithNoProbes(t *testing.T) {
	h := New()
	h.SetReady(true)

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConcurrentObserveAndRead(t *testing.T) {
	h := New()
	h.AddLivenessCheck("a", time.Second, brokenCheck("err"))
	h.AddReadinessCheck("b", time.Second, healthyCheck)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()

				w := httptest.NewRecorder()
				h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

				w = httptest.NewRecorder()
				h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
