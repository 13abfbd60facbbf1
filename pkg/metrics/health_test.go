package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthCheckBasic(t *testing.T) {
	h := NewHealthCheck(NewCollector(nil), "v0.1.0")

	response := h.Check()
	if response.Status != HealthStatusHealthy {
		t.Errorf("expected healthy status, got %s", response.Status)
	}
	if response.Version != "v0.1.0" {
		t.Errorf("expected version v0.1.0, got %s", response.Version)
	}
	if response.Uptime == "" {
		t.Error("expected non-empty uptime")
	}
}

func TestHealthCheckWithChecks(t *testing.T) {
	h := NewHealthCheck(NewCollector(nil), "v0.1.0")
	h.AddCheck("selftest", func() error { return nil })

	response := h.Check()
	if response.Status != HealthStatusHealthy {
		t.Errorf("expected healthy status, got %s", response.Status)
	}
	if len(response.Checks) != 1 || response.Checks["selftest"].Status != HealthStatusHealthy {
		t.Errorf("unexpected checks %+v", response.Checks)
	}
}

func TestHealthCheckWithFailingCheck(t *testing.T) {
	h := NewHealthCheck(NewCollector(nil), "v0.1.0")
	h.AddCheck("selftest", func() error { return errors.New("ML-KEM known answer mismatch") })

	response := h.Check()
	if response.Status != HealthStatusUnhealthy {
		t.Errorf("expected unhealthy status, got %s", response.Status)
	}
	if got := response.Checks["selftest"]; got.Status != HealthStatusUnhealthy || got.Message != "ML-KEM known answer mismatch" {
		t.Errorf("unexpected check result %+v", got)
	}
}

func TestHealthCheckWithMetrics(t *testing.T) {
	c := NewCollector(nil)
	c.SessionStarted()
	c.RecordEncrypt(19, time.Microsecond)
	c.RecordAuthFailure()

	response := NewHealthCheck(c, "v0.1.0").Check()
	if response.Metrics == nil {
		t.Fatal("expected metrics in response")
	}
	if response.Metrics.SessionsActive != 1 || response.Metrics.MessagesEncrypted != 1 || response.Metrics.AuthFailures != 1 {
		t.Errorf("unexpected metrics %+v", response.Metrics)
	}
}

func TestHealthCheckRemoveCheck(t *testing.T) {
	h := NewHealthCheck(NewCollector(nil), "v0.1.0")
	h.AddCheck("temp", func() error { return errors.New("fail") })

	if h.Check().Status != HealthStatusUnhealthy {
		t.Error("expected unhealthy with failing check")
	}

	h.RemoveCheck("temp")
	if h.Check().Status != HealthStatusHealthy {
		t.Error("expected healthy after removing check")
	}
}

func TestHealthCheckHandler(t *testing.T) {
	h := NewHealthCheck(NewCollector(nil), "v0.1.0")

	w := httptest.NewRecorder()
	h.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	var response HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != HealthStatusHealthy {
		t.Errorf("expected healthy status, got %s", response.Status)
	}
}

func TestHealthCheckHandlerUnhealthy(t *testing.T) {
	h := NewHealthCheck(NewCollector(nil), "v0.1.0")
	h.AddCheck("failing", func() error { return errors.New("fail") })

	w := httptest.NewRecorder()
	h.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	h := NewHealthCheck(NewCollector(nil), "v0.1.0")
	h.AddCheck("failing", func() error { return errors.New("fail") })

	w := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("liveness ignores checks, got %d", w.Code)
	}
}

func TestReadinessHandler(t *testing.T) {
	h := NewHealthCheck(NewCollector(nil), "v0.1.0")
	handler := h.ReadinessHandler()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 for readiness, got %d", w.Code)
	}

	h.AddCheck("failing", func() error { return errors.New("fail") })

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 for unhealthy readiness, got %d", w.Code)
	}
}

func TestHealthCheckErrorRate(t *testing.T) {
	c := NewCollector(nil)
	h := NewHealthCheck(c, "v0.1.0")

	for i := 0; i < 100; i++ {
		c.RecordEncrypt(10, time.Microsecond)
	}
	// Authentication failures do not degrade the service.
	for i := 0; i < 50; i++ {
		c.RecordAuthFailure()
	}

	response := h.Check()
	if response.Metrics.ErrorRate != 0 || response.Status != HealthStatusHealthy {
		t.Errorf("expected healthy with 0 error rate, got %s %f", response.Status, response.Metrics.ErrorRate)
	}

	for i := 0; i < 10; i++ {
		c.RecordEncryptError()
	}

	response = h.Check()
	if response.Status != HealthStatusDegraded {
		t.Errorf("expected degraded status with high error rate, got %s", response.Status)
	}
}

func TestMemoryCheck(t *testing.T) {
	if err := MemoryCheck(1 << 40)(); err != nil {
		t.Errorf("1 TiB threshold should pass: %v", err)
	}
	if err := MemoryCheck(1)(); err == nil {
		t.Error("1 byte threshold should fail")
	}
}

func TestCachedCheck(t *testing.T) {
	calls := 0
	check := CachedCheck(func() error {
		calls++
		return errors.New("once")
	})

	for i := 0; i < 3; i++ {
		if err := check(); err == nil || err.Error() != "once" {
			t.Errorf("call %d: err = %v", i, err)
		}
	}
	if calls != 1 {
		t.Errorf("check ran %d times, want 1", calls)
	}
}

func TestServerHandler(t *testing.T) {
	server := NewServer(ServerConfig{
		Collector:        NewCollector(nil),
		Version:          "v0.1.0",
		Namespace:        "test",
		EnablePrometheus: true,
		EnableHealth:     true,
	})

	for _, path := range []string{"/metrics", "/health", "/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("expected %s to return 200, got %d", path, w.Code)
		}
	}
}

func TestServerMount(t *testing.T) {
	server := NewServer(ServerConfig{Collector: NewCollector(nil), EnablePrometheus: true})

	mux := http.NewServeMux()
	server.Mount(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("mounted /metrics returned %d", w.Code)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("health disabled, /health returned %d", w.Code)
	}
}

func TestServerAddHealthCheck(t *testing.T) {
	server := NewServer(ServerConfig{EnableHealth: true})
	server.AddHealthCheck("test", func() error { return errors.New("fail") })

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Error("expected /health to return 503 with failing check")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{10 * time.Second, "10s"},
		{2*time.Minute + 5*time.Second, "2m5s"},
		{3*time.Hour + 4*time.Minute, "3h4m"},
		{150*time.Hour + 30*time.Minute, "6d6h30m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestWarningCheckDegrades(t *testing.T) {
	h := NewHealthCheck(nil, "v0.1.0")
	h.AddWarningCheck("memory", func() error { return errors.New("heap high") })

	resp := h.Check()
	if resp.Status != HealthStatusDegraded {
		t.Fatalf("status = %s, want degraded", resp.Status)
	}
	if resp.Checks["memory"].Status != HealthStatusDegraded {
		t.Errorf("check status = %s", resp.Checks["memory"].Status)
	}

	h.AddCheck("rng", func() error { return errors.New("stuck") })
	if got := h.Check().Status; got != HealthStatusUnhealthy {
		t.Errorf("critical failure should win, got %s", got)
	}
}

func TestHealthCheckKeyGenFailureRate(t *testing.T) {
	c := NewCollector(nil)
	h := NewHealthCheck(c, "v0.1.0")

	c.RecordKeyGeneration("rsa", 200*time.Millisecond, nil)
	c.RecordKeyGeneration("rsa", 0, errors.New("prime search exhausted"))

	resp := h.Check()
	if resp.Metrics.KeyGenFailures != 1 || resp.Metrics.KeyGenFailureRate != 0.5 {
		t.Errorf("unexpected keygen figures %+v", resp.Metrics)
	}
	if resp.Status != HealthStatusDegraded {
		t.Errorf("status = %s, want degraded", resp.Status)
	}
}
