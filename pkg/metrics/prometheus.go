package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
)

// DefaultNamespace prefixes exported metric names.
const DefaultNamespace = "quantum_vault"

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates a new Prometheus exporter for the given collector.
// The namespace is prepended to all metric names (e.g., "quantum_vault").
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &PrometheusExporter{
		collector: c,
		namespace: namespace,
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		e.WriteMetrics(w)
	})
}

// WriteMetrics writes all metrics in Prometheus text format to the writer.
func (e *PrometheusExporter) WriteMetrics(w io.Writer) {
	snap := e.collector.Snapshot()
	labels := formatLabels(snap.Labels)

	// --- Session Metrics ---
	e.writeScalar(w, "sessions_active", "Number of live exchange sessions", "gauge", labels, float64(snap.SessionsActive))
	e.writeScalar(w, "sessions_total", "Total number of sessions created", "counter", labels, float64(snap.SessionsTotal))
	e.writeScalar(w, "sessions_failed_total", "Total number of sessions whose exchange failed", "counter", labels, float64(snap.SessionsFailed))

	// --- Key Exchange Metrics ---
	names := snap.AlgorithmNames()
	algCounter := func(name, help string, value func(AlgorithmSnapshot) uint64) {
		e.writeHelp(w, name, help)
		e.writeType(w, name, "counter")
		for _, alg := range names {
			e.writeMetric(w, name, withLabel(snap.Labels, "algorithm", alg), float64(value(snap.Algorithms[alg])))
		}
	}
	algCounter("keygen_total", "Successful key generations", func(a AlgorithmSnapshot) uint64 { return a.KeyGenerations })
	algCounter("keygen_failures_total", "Failed key generations", func(a AlgorithmSnapshot) uint64 { return a.KeyGenFailures })
	algCounter("keygen_timeouts_total", "Key generations that exhausted their budget", func(a AlgorithmSnapshot) uint64 { return a.KeyGenTimeouts })
	algCounter("exchanges_total", "Successful encapsulations", func(a AlgorithmSnapshot) uint64 { return a.Exchanges })
	algCounter("exchange_failures_total", "Failed encapsulations", func(a AlgorithmSnapshot) uint64 { return a.ExchangeFailures })
	algCounter("decapsulations_total", "Successful decapsulations", func(a AlgorithmSnapshot) uint64 { return a.Decapsulations })
	algCounter("decapsulation_failures_total", "Failed decapsulations", func(a AlgorithmSnapshot) uint64 { return a.DecapFailures })

	// --- Message Metrics ---
	e.writeScalar(w, "messages_encrypted_total", "Total messages encrypted", "counter", labels, float64(snap.MessagesEncrypted))
	e.writeScalar(w, "messages_decrypted_total", "Total messages decrypted", "counter", labels, float64(snap.MessagesDecrypted))
	e.writeScalar(w, "bytes_encrypted_total", "Total plaintext bytes encrypted", "counter", labels, float64(snap.BytesEncrypted))
	e.writeScalar(w, "bytes_decrypted_total", "Total plaintext bytes decrypted", "counter", labels, float64(snap.BytesDecrypted))

	// --- Security Metrics ---
	e.writeScalar(w, "auth_failures_total", "Total authentication failures", "counter", labels, float64(snap.AuthFailures))
	e.writeScalar(w, "malformed_inputs_total", "Total malformed ciphertexts rejected", "counter", labels, float64(snap.MalformedInputs))
	e.writeScalar(w, "rate_limited_total", "Total key generation requests throttled", "counter", labels, float64(snap.RateLimited))

	// --- Error Metrics ---
	e.writeScalar(w, "encrypt_errors_total", "Total encryption errors", "counter", labels, float64(snap.EncryptErrors))
	e.writeScalar(w, "decrypt_errors_total", "Total decryption errors", "counter", labels, float64(snap.DecryptErrors))

	// --- Uptime ---
	e.writeScalar(w, "uptime_seconds", "Time since the collector was created", "gauge", labels, snap.Uptime.Seconds())

	// --- Histograms ---
	algHistogram := func(name, help string, value func(AlgorithmSnapshot) HistogramSummary) {
		e.writeHelp(w, name, help)
		e.writeType(w, name, "histogram")
		for _, alg := range names {
			e.writeHistogramSeries(w, name, withLabel(snap.Labels, "algorithm", alg), value(snap.Algorithms[alg]))
		}
	}
	algHistogram("keygen_duration_milliseconds", "Key generation duration in milliseconds", func(a AlgorithmSnapshot) HistogramSummary { return a.KeyGenLatency })
	algHistogram("exchange_duration_milliseconds", "Encapsulation duration in milliseconds", func(a AlgorithmSnapshot) HistogramSummary { return a.ExchangeLatency })
	algHistogram("decapsulation_duration_milliseconds", "Decapsulation duration in milliseconds", func(a AlgorithmSnapshot) HistogramSummary { return a.DecapsulateLatency })

	e.writeHistogram(w, "encrypt_duration_microseconds", "Encryption duration in microseconds", labels, snap.EncryptLatency)
	e.writeHistogram(w, "decrypt_duration_microseconds", "Decryption duration in microseconds", labels, snap.DecryptLatency)
}

func (e *PrometheusExporter) writeScalar(w io.Writer, name, help, typ, labels string, value float64) {
	e.writeHelp(w, name, help)
	e.writeType(w, name, typ)
	e.writeMetric(w, name, labels, value)
}

// writeHelp writes a HELP line.
func (e *PrometheusExporter) writeHelp(w io.Writer, name, help string) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
}

// writeType writes a TYPE line.
func (e *PrometheusExporter) writeType(w io.Writer, name, typ string) {
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", e.namespace, name, typ)
}

// writeMetric writes a single metric line.
func (e *PrometheusExporter) writeMetric(w io.Writer, name, labels string, value float64) {
	if labels != "" {
		fmt.Fprintf(w, "%s_%s{%s} %g\n", e.namespace, name, labels, value)
	} else {
		fmt.Fprintf(w, "%s_%s %g\n", e.namespace, name, value)
	}
}

// writeHistogram writes a histogram with its HELP and TYPE header.
func (e *PrometheusExporter) writeHistogram(w io.Writer, name, help, labels string, h HistogramSummary) {
	e.writeHelp(w, name, help)
	e.writeType(w, name, "histogram")
	e.writeHistogramSeries(w, name, labels, h)
}

// writeHistogramSeries writes the bucket, sum and count lines of one series.
func (e *PrometheusExporter) writeHistogramSeries(w io.Writer, name, labels string, h HistogramSummary) {
	fullName := e.namespace + "_" + name
	prefix := ""
	if labels != "" {
		prefix = labels + ","
	}

	for _, b := range h.Buckets {
		le := fmt.Sprintf("%g", b.UpperBound)
		if math.IsInf(b.UpperBound, 1) {
			le = "+Inf"
		}
		fmt.Fprintf(w, "%s_bucket{%sle=\"%s\"} %d\n", fullName, prefix, le, b.Count)
	}

	if labels != "" {
		fmt.Fprintf(w, "%s_sum{%s} %g\n", fullName, labels, h.Sum)
		fmt.Fprintf(w, "%s_count{%s} %d\n", fullName, labels, h.Count)
	} else {
		fmt.Fprintf(w, "%s_sum %g\n", fullName, h.Sum)
		fmt.Fprintf(w, "%s_count %d\n", fullName, h.Count)
	}
}

// withLabel returns labels plus key=value in Prometheus format.
func withLabel(labels Labels, key, value string) string {
	merged := make(Labels, len(labels)+1)
	for k, v := range labels {
		merged[k] = v
	}
	merged[key] = value
	return formatLabels(merged)
}

// formatLabels converts Labels to Prometheus label format.
func formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", k, escapePromValue(labels[k])))
	}

	return strings.Join(parts, ",")
}

// escapePromValue escapes a string for use as a Prometheus label value.
func escapePromValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
