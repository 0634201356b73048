package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pzverkov/quantum-messenger/pkg/crypto"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
)

// HealthStatus represents the overall health state.
type HealthStatus string

const (
	// HealthStatusHealthy indicates all checks are passing.
	HealthStatusHealthy HealthStatus = "healthy"
	// HealthStatusDegraded indicates advisory checks are failing or the
	// decrypt failure rate is high.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusUnhealthy indicates critical checks are failing.
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// Severity says what a failing check does to the overall status.
type Severity uint8

const (
	// Critical checks make the service unhealthy when they fail.
	Critical Severity = iota
	// Advisory checks only degrade it.
	Advisory
)

// CheckFunc performs one health check. It returns nil when healthy.
type CheckFunc func(ctx context.Context) error

// CheckTimeout bounds each check. A check still running when it expires
// is reported as failed.
const CheckTimeout = 2 * time.Second

// DegradedErrorRate is the ratio of failed to attempted message opens above
// which health is degraded. Policy rejections and rate limiting are
// refusals, not failures, and do not count.
const DegradedErrorRate = 0.01

type namedCheck struct {
	fn       CheckFunc
	severity Severity
}

// HealthCheck runs named checks and reports messenger health from the
// collector's counters.
type HealthCheck struct {
	mu        sync.RWMutex
	checks    map[string]namedCheck
	collector *Collector
	started   time.Time
	version   string
}

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Metrics   *HealthMetrics         `json:"metrics,omitempty"`
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status   HealthStatus `json:"status"`
	Advisory bool         `json:"advisory,omitempty"`
	Message  string       `json:"message,omitempty"`
	Latency  string       `json:"latency,omitempty"`
}

// HealthMetrics contains key metrics for health monitoring.
type HealthMetrics struct {
	MessagesSealed   uint64  `json:"messages_sealed"`
	MessagesOpened   uint64  `json:"messages_opened"`
	EnvelopesStored  uint64  `json:"envelopes_stored"`
	PolicyRejections uint64  `json:"policy_rejections"`
	RateLimited      uint64  `json:"rate_limited"`
	ErrorRate        float64 `json:"error_rate,omitempty"`
}

// NewHealthCheck creates a health check reporting from collector, which may
// be nil.
func NewHealthCheck(collector *Collector, version string) *HealthCheck {
	return &HealthCheck{
		checks:    make(map[string]namedCheck),
		collector: collector,
		started:   time.Now(),
		version:   version,
	}
}

// AddCheck registers a critical check under name, replacing any check
// already registered there.
func (h *HealthCheck) AddCheck(name string, check CheckFunc) {
	h.add(name, check, Critical)
}

// AddAdvisoryCheck registers a check whose failure only degrades health.
func (h *HealthCheck) AddAdvisoryCheck(name string, check CheckFunc) {
	h.add(name, check, Advisory)
}

func (h *HealthCheck) add(name string, check CheckFunc, s Severity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = namedCheck{fn: check, severity: s}
}

// RemoveCheck removes a named health check.
func (h *HealthCheck) RemoveCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.checks, name)
}

// Check runs every registered check concurrently and derives the overall
// status from their results and the collector's failure rate.
func (h *HealthCheck) Check(ctx context.Context) HealthResponse {
	h.mu.RLock()
	checks := make(map[string]namedCheck, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := runCheck(ctx, c)
			mu.Lock()
			results[name] = r
			mu.Unlock()
		}()
	}
	wg.Wait()

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   h.version,
		Checks:    results,
	}

	for _, r := range results {
		switch {
		case r.Status == HealthStatusHealthy:
		case r.Advisory:
			response.Status = worse(response.Status, HealthStatusDegraded)
		default:
			response.Status = HealthStatusUnhealthy
		}
	}

	if h.collector != nil {
		response.Metrics = healthMetrics(h.collector.Snapshot())
		if response.Metrics.ErrorRate > DegradedErrorRate {
			response.Status = worse(response.Status, HealthStatusDegraded)
		}
	}

	return response
}

func runCheck(ctx context.Context, c namedCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- c.fn(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	r := CheckResult{
		Status:   HealthStatusHealthy,
		Advisory: c.severity == Advisory,
		Latency:  time.Since(start).String(),
	}
	if err != nil {
		r.Status = HealthStatusUnhealthy
		if r.Advisory {
			r.Status = HealthStatusDegraded
		}
		r.Message = err.Error()
	}
	return r
}

func healthMetrics(snap Snapshot) *HealthMetrics {
	m := &HealthMetrics{
		MessagesSealed:   snap.MessagesSealed.Total(),
		MessagesOpened:   snap.MessagesOpened.Total(),
		EnvelopesStored:  snap.EnvelopesStored,
		PolicyRejections: snap.PolicyRejections,
		RateLimited:      snap.RateLimited,
	}
	failed := snap.DecryptFailures + snap.VerifyFailures
	if attempted := m.MessagesOpened + failed; attempted > 0 {
		m.ErrorRate = float64(failed) / float64(attempted)
	}
	return m
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Handler serves the full health report. Unhealthy answers 503; degraded
// still answers 200.
func (h *HealthCheck) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := h.Check(r.Context())
		code := http.StatusOK
		if response.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, response)
	})
}

// LivenessHandler answers 200 while the process is running.
func (h *HealthCheck) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
}

// ReadinessHandler answers 200 unless a critical check fails.
func (h *HealthCheck) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := h.Check(r.Context())
		ready := response.Status != HealthStatusUnhealthy
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status": response.Status,
			"ready":  ready,
		})
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// --- Common Health Checks ---

// SelfTestCheck fails unless the cryptographic power-on self-tests passed.
func SelfTestCheck() CheckFunc {
	return func(context.Context) error {
		return crypto.RequirePOST()
	}
}

// ConfigCheck fails if the crypto configuration returned by get is invalid.
func ConfigCheck(get func() mode.Config) CheckFunc {
	return func(context.Context) error {
		return get().Validate()
	}
}

// PolicyCheck fails if the configuration returned by get admits messages
// weaker than floor. Register it as advisory on relays expected to stay
// quantum-safe.
func PolicyCheck(get func() mode.Config, floor mode.Mode) CheckFunc {
	return func(context.Context) error {
		if minimum := get().MinimumMode; minimum.SecurityLevel() < floor.SecurityLevel() {
			return fmt.Errorf("minimum mode %s is below %s", minimum, floor)
		}
		return nil
	}
}
