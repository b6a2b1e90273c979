// Package health serves Kubernetes-style liveness and readiness probes.
//
// Registered checks run on their own tickers. A check flips to unhealthy only
// after three consecutive failures and recovers on the first success, so a
// single slow poll does not take the service out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one component. Nil means healthy.
type CheckFunc func(ctx context.Context) error

const (
	defaultFailAfter    = 3
	defaultRecoverAfter = 1
)

// probe wraps a CheckFunc with threshold counters. The poll goroutine is the
// only writer of the counters; state is read by HTTP handlers under mu.
type probe struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	failAfter    int
	recoverAfter int

	mu      sync.Mutex
	healthy bool
	lastErr error
	fails   int
	passes  int
}

func newProbe(name string, timeout time.Duration, fn CheckFunc) *probe {
	return &probe{
		name:         name,
		timeout:      timeout,
		fn:           fn,
		failAfter:    defaultFailAfter,
		recoverAfter: defaultRecoverAfter,
		healthy:      true,
	}
}

// observe runs the check once and applies the thresholds.
func (p *probe) observe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.fn(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastErr = err
	if err != nil {
		p.passes = 0
		p.fails++
		if p.fails >= p.failAfter {
			p.healthy = false
		}
		return
	}

	p.fails = 0
	p.passes++
	if p.passes >= p.recoverAfter {
		p.healthy = true
	}
}

// status reports the probe's current verdict and the last observed error.
func (p *probe) status() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy, p.lastErr
}

func (p *probe) poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.observe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.observe(ctx)
		}
	}
}

// Health tracks liveness and readiness probes for one service.
type Health struct {
	ready atomic.Bool

	mu    sync.RWMutex
	live  []*probe
	readz []*probe
	stop  context.CancelFunc
}

// New returns a Health with no probes. The service starts not ready; call
// SetReady(true) once startup finishes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe behind /livez. Liveness answers "is the
// process wedged", so checks here should look at process-local signals like
// goroutine counts rather than at dependencies.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live = append(h.live, newProbe(name, timeout, fn))
}

// AddReadinessCheck registers a probe behind /readyz. Readiness gates
// traffic, so dependency checks (database pings and the like) belong here.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readz = append(h.readz, newProbe(name, timeout, fn))
}

// Start launches one polling goroutine per registered probe. Register all
// probes before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.stop = cancel
	probes := make([]*probe, 0, len(h.live)+len(h.readz))
	probes = append(probes, h.live...)
	probes = append(probes, h.readz...)
	h.mu.Unlock()

	for _, p := range probes {
		go p.poll(ctx, interval)
	}
}

// Stop cancels the polling goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

// SetReady flips the manual readiness gate. Set false during graceful
// shutdown so load balancers stop routing new traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and every readiness probe
// passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	probes := h.readz
	h.mu.RUnlock()

	for _, p := range probes {
		if ok, _ := p.status(); !ok {
			return false
		}
	}
	return true
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint answers /livez: 200 when every liveness probe passes, 503
// with per-check failure messages otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := append([]*probe(nil), h.live...)
	h.mu.RUnlock()

	writeStatus(w, failureMap(probes))
}

// ReadyEndpoint answers /readyz: 200 when the manual gate is open and every
// readiness probe passes, 503 with details otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	ready := h.ready.Load()

	h.mu.RLock()
	probes := append([]*probe(nil), h.readz...)
	h.mu.RUnlock()

	failures := failureMap(probes)
	if !ready {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

// failureMap collects the last stored error per unhealthy probe. Probes are
// not re-run here; handlers report whatever the pollers saw last.
func failureMap(probes []*probe) map[string]string {
	failures := make(map[string]string)
	for _, p := range probes {
		ok, err := p.status()
		if ok {
			continue
		}
		if err != nil {
			failures[p.name] = err.Error()
		} else {
			failures[p.name] = "check is unhealthy"
		}
	}
	return failures
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: failures}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
