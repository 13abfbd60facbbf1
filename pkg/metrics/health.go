package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// HealthStatus is the overall verdict of a health check run.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

func (a HealthStatus) rank() int {
	switch a {
	case HealthStatusUnhealthy:
		return 2
	case HealthStatusDegraded:
		return 1
	}
	return 0
}

// worse reports whether a ranks below b.
func (a HealthStatus) worse(b HealthStatus) bool { return a.rank() > b.rank() }

// CheckFunc returns nil when the checked component is fine.
type CheckFunc func() error

// namedCheck pairs a check with the status its failure contributes.
type namedCheck struct {
	fn     CheckFunc
	onFail HealthStatus
}

// HealthCheck runs named checks and folds them, together with the
// collector's error rates, into one HealthStatus.
type HealthCheck struct {
	collector *Collector
	version   string
	started   time.Time

	mu     sync.RWMutex
	checks map[string]namedCheck
}

// HealthResponse is the /health body.
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
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthMetrics are the collector figures reported with every check run.
type HealthMetrics struct {
	SessionsActive    uint64  `json:"sessions_active"`
	SessionsTotal     uint64  `json:"sessions_total"`
	MessagesEncrypted uint64  `json:"messages_encrypted"`
	MessagesDecrypted uint64  `json:"messages_decrypted"`
	AuthFailures      uint64  `json:"auth_failures"`
	RateLimited       uint64  `json:"rate_limited"`
	KeyGenFailures    uint64  `json:"keygen_failures"`
	ErrorRate         float64 `json:"error_rate,omitempty"`
	KeyGenFailureRate float64 `json:"keygen_failure_rate,omitempty"`
}

// DegradedErrorRate is the message error rate, and separately the key
// generation failure rate, above which the service reports degraded.
// Authentication failures are excluded: they reflect bad input.
const DegradedErrorRate = 0.01

// NewHealthCheck returns a HealthCheck reporting version and the figures of
// collector, which may be nil.
func NewHealthCheck(collector *Collector, version string) *HealthCheck {
	return &HealthCheck{
		collector: collector,
		version:   version,
		started:   time.Now(),
		checks:    make(map[string]namedCheck),
	}
}

// AddCheck registers a critical check. Its failure makes the service
// unhealthy.
func (h *HealthCheck) AddCheck(name string, check CheckFunc) {
	h.add(name, check, HealthStatusUnhealthy)
}

// AddWarningCheck registers a check whose failure only degrades the service.
func (h *HealthCheck) AddWarningCheck(name string, check CheckFunc) {
	h.add(name, check, HealthStatusDegraded)
}

func (h *HealthCheck) add(name string, check CheckFunc, onFail HealthStatus) {
	h.mu.Lock()
	h.checks[name] = namedCheck{fn: check, onFail: onFail}
	h.mu.Unlock()
}

// RemoveCheck unregisters name.
func (h *HealthCheck) RemoveCheck(name string) {
	h.mu.Lock()
	delete(h.checks, name)
	h.mu.Unlock()
}

// Check runs every registered check.
func (h *HealthCheck) Check() HealthResponse {
	h.mu.RLock()
	checks := make(map[string]namedCheck, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Uptime:    formatDuration(time.Since(h.started)),
		Version:   h.version,
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for name, c := range checks {
		res := runCheck(c)
		if res.Status.worse(resp.Status) {
			resp.Status = res.Status
		}
		resp.Checks[name] = res
	}

	if h.collector != nil {
		resp.Metrics = healthMetrics(h.collector.Snapshot())
		if (resp.Metrics.ErrorRate > DegradedErrorRate || resp.Metrics.KeyGenFailureRate > DegradedErrorRate) &&
			HealthStatusDegraded.worse(resp.Status) {
			resp.Status = HealthStatusDegraded
		}
	}
	return resp
}

func runCheck(c namedCheck) CheckResult {
	start := time.Now()
	err := c.fn()
	res := CheckResult{Status: HealthStatusHealthy, Latency: time.Since(start).String()}
	if err != nil {
		res.Status = c.onFail
		res.Message = err.Error()
	}
	return res
}

func healthMetrics(snap Snapshot) *HealthMetrics {
	m := &HealthMetrics{
		SessionsActive:    snap.SessionsActive,
		SessionsTotal:     snap.SessionsTotal,
		MessagesEncrypted: snap.MessagesEncrypted,
		MessagesDecrypted: snap.MessagesDecrypted,
		AuthFailures:      snap.AuthFailures,
		RateLimited:       snap.RateLimited,
	}

	errs := snap.EncryptErrors + snap.DecryptErrors
	m.ErrorRate = ratio(errs, snap.MessagesEncrypted+snap.MessagesDecrypted+errs)

	var gens uint64
	for _, a := range snap.Algorithms {
		gens += a.KeyGenerations
		m.KeyGenFailures += a.KeyGenFailures
	}
	m.KeyGenFailureRate = ratio(m.KeyGenFailures, gens+m.KeyGenFailures)
	return m
}

func ratio(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Handler serves the full HealthResponse. Degraded still answers 200.
func (h *HealthCheck) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := h.Check()
		code := http.StatusOK
		if resp.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})
}

// LivenessHandler answers 200 while the process is up.
func (h *HealthCheck) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
}

// ReadinessHandler answers 503 while any critical check fails.
func (h *HealthCheck) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := h.Check().Status
		ready := status != HealthStatusUnhealthy
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"status": status, "ready": ready})
	})
}

// formatDuration formats a duration as e.g. "2d3h4m" or "5m12s".
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var b strings.Builder
	write := func(n int, unit string) {
		if n > 0 {
			b.WriteString(strconv.Itoa(n))
			b.WriteString(unit)
		}
	}
	switch {
	case days > 0:
		write(days, "d")
		write(hours, "h")
		write(minutes, "m")
	case hours > 0:
		write(hours, "h")
		write(minutes, "m")
		write(seconds, "s")
	default:
		write(minutes, "m")
		write(seconds, "s")
	}
	if b.Len() == 0 {
		return "0s"
	}
	return b.String()
}

// --- Common Health Checks ---

// MemoryCheck fails when the heap in use exceeds threshold bytes.
func MemoryCheck(threshold uint64) CheckFunc {
	return func() error {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		if ms.HeapInuse > threshold {
			return fmt.Errorf("heap in use %d bytes exceeds %d", ms.HeapInuse, threshold)
		}
		return nil
	}
}

// CachedCheck runs check once and reports its result on every call. Use it
// for expensive checks such as the cryptographic self-test.
func CachedCheck(check CheckFunc) CheckFunc {
	var (
		once sync.Once
		err  error
	)
	return func() error {
		once.Do(func() { err = check() })
		return err
	}
}

// --- Server ---

// Server provides the /metrics, /health, /healthz and /readyz endpoints.
type Server struct {
	mux        *http.ServeMux
	collector  *Collector
	health     *HealthCheck
	prometheus *PrometheusExporter
}

// ServerConfig configures the observability server.
type ServerConfig struct {
	Collector        *Collector
	Version          string
	Namespace        string // Prometheus namespace
	EnablePrometheus bool
	EnableHealth     bool
}

// NewServer creates a new observability server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}

	s := &Server{
		mux:       http.NewServeMux(),
		collector: cfg.Collector,
	}

	if cfg.EnablePrometheus {
		s.prometheus = NewPrometheusExporter(cfg.Collector, cfg.Namespace)
	}
	if cfg.EnableHealth {
		s.health = NewHealthCheck(cfg.Collector, cfg.Version)
	}
	s.Mount(s.mux)

	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Mount registers the observability endpoints on mux, so they can share a
// listener with the API.
func (s *Server) Mount(mux *http.ServeMux) {
	if s.prometheus != nil {
		mux.Handle("/metrics", s.prometheus.Handler())
	}
	if s.health != nil {
		mux.Handle("/health", s.health.Handler())
		mux.Handle("/healthz", s.health.LivenessHandler())
		mux.Handle("/readyz", s.health.ReadinessHandler())
	}
}

// AddHealthCheck registers a critical check.
func (s *Server) AddHealthCheck(name string, check CheckFunc) {
	if s.health != nil {
		s.health.AddCheck(name, check)
	}
}

// AddWarningCheck registers a check whose failure only degrades the service.
func (s *Server) AddWarningCheck(name string, check CheckFunc) {
	if s.health != nil {
		s.health.AddWarningCheck(name, check)
	}
}
