package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusExporterWriteMetrics(t *testing.T) {
	c := NewCollector(Labels{"instance": "test"})

	c.SessionStarted()
	c.RecordKeyGeneration("kyber", 200*time.Microsecond, nil)
	c.RecordEncrypt(19, 12*time.Microsecond)

	exp := NewPrometheusExporter(c, "qv")

	var buf bytes.Buffer
	exp.WriteMetrics(&buf)
	output := buf.String()

	expected := []string{
		"qv_sessions_active",
		"qv_sessions_total",
		"qv_messages_encrypted_total",
		"qv_keygen_duration_milliseconds",
		"qv_encrypt_duration_microseconds",
		"# HELP qv_sessions_active",
		"# TYPE qv_sessions_active gauge",
		"# TYPE qv_keygen_total counter",
		`qv_keygen_total{algorithm="kyber",instance="test"} 1`,
		`qv_bytes_encrypted_total{instance="test"} 19`,
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

func TestPrometheusExporterDefaultNamespace(t *testing.T) {
	exp := NewPrometheusExporter(NewCollector(nil), "")

	var buf bytes.Buffer
	exp.WriteMetrics(&buf)
	if !strings.Contains(buf.String(), DefaultNamespace+"_sessions_active 0") {
		t.Error("expected default namespace prefix")
	}
}

func TestPrometheusExporterHandler(t *testing.T) {
	c := NewCollector(nil)
	c.SessionStarted()

	handler := NewPrometheusExporter(c, "test").Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("expected text/plain content type, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "test_sessions_active 1") {
		t.Error("expected sessions_active metric in response")
	}
}

func TestPrometheusExporterAlgorithmHistograms(t *testing.T) {
	c := NewCollector(nil)
	c.RecordKeyGeneration("rsa", 150*time.Millisecond, nil)
	c.RecordKeyGeneration("rsa", 700*time.Millisecond, nil)
	c.RecordDecapsulation("kyber", 40*time.Microsecond, nil)

	var buf bytes.Buffer
	NewPrometheusExporter(c, "qv").WriteMetrics(&buf)
	output := buf.String()

	for _, want := range []string{
		`qv_keygen_duration_milliseconds_bucket{algorithm="rsa",le="250"} 1`,
		`qv_keygen_duration_milliseconds_bucket{algorithm="rsa",le="1000"} 2`,
		`qv_keygen_duration_milliseconds_bucket{algorithm="rsa",le="+Inf"} 2`,
		`qv_keygen_duration_milliseconds_count{algorithm="rsa"} 2`,
		`qv_decapsulation_duration_milliseconds_count{algorithm="kyber"} 1`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output", want)
		}
	}

	// HELP is written once per metric family regardless of algorithm count.
	if n := strings.Count(output, "# HELP qv_keygen_duration_milliseconds "); n != 1 {
		t.Errorf("HELP written %d times", n)
	}
}

func TestPrometheusExporterLabelEscaping(t *testing.T) {
	c := NewCollector(Labels{"path": `C:\vault "main"` + "\nnext"})

	var buf bytes.Buffer
	NewPrometheusExporter(c, "test").WriteMetrics(&buf)

	if !strings.Contains(buf.String(), `path="C:\\vault \"main\"\nnext"`) {
		t.Errorf("label not escaped: %s", buf.String())
	}
}

func TestPrometheusExporterEmptyLabels(t *testing.T) {
	c := NewCollector(nil)
	c.RecordEncrypt(1, time.Microsecond)

	var buf bytes.Buffer
	NewPrometheusExporter(c, "test").WriteMetrics(&buf)
	output := buf.String()

	if !strings.Contains(output, "test_sessions_active 0") {
		t.Error("expected unlabeled metric line")
	}
	if !strings.Contains(output, `test_encrypt_duration_microseconds_bucket{le="+Inf"} 1`) {
		t.Error("expected unlabeled histogram bucket")
	}
}
