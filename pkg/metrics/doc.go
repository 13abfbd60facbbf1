// Package metrics provides observability for quantum-vault: key exchange and
// message metrics, Prometheus export, tracing, structured logging and health
// checks.
//
// # Metrics Collection
//
// The Collector keeps session and message counters plus per-algorithm key
// exchange counters and latency histograms:
//
//	collector := metrics.NewCollector(metrics.Labels{"instance": "node-1"})
//
//	collector.SessionStarted()
//	collector.RecordKeyGeneration("kyber", d, err)
//	collector.RecordExchange("kyber", d, err)
//	collector.RecordDecapsulation("kyber", d, err)
//	collector.RecordEncrypt(len(plaintext), d)
//	collector.RecordAuthFailure()
//
//	snap := collector.Snapshot()
//	fmt.Println(snap.Algorithms["rsa"].KeyGenLatency.Mean)
//
// # Prometheus Export
//
//	exporter := metrics.NewPrometheusExporter(collector, metrics.DefaultNamespace)
//	mux.Handle("/metrics", exporter.Handler())
//
// Key exchange series carry an algorithm label:
//
//	quantum_vault_keygen_total{algorithm="kyber"} 12
//	quantum_vault_keygen_duration_milliseconds_bucket{algorithm="rsa",le="500"} 3
//
// # Tracing
//
// Tracer is a small interface with three implementations: NoOpTracer (the
// default), SimpleTracer (in-memory, for tests) and OTelTracer, which is a
// real OpenTelemetry adapter when built with -tags otel:
//
//	metrics.SetTracer(metrics.NewOTelTracer("quantum-vault"))
//
//	ctx, end := metrics.StartSpan(ctx, metrics.SpanKeyGen,
//		metrics.WithAttributes(metrics.SpanAttributes{Algorithm: "kyber"}.ToMap()))
//	defer func() { end(err) }()
//
// # Logging
//
// Logger wraps logrus with leveled, structured output in text or JSON:
//
//	logger := metrics.NewLogger(
//		metrics.WithLevel(metrics.LevelDebug),
//		metrics.WithFormat(metrics.FormatJSON),
//		metrics.WithFields(metrics.Fields{"service": "quantum-vault"}),
//	)
//	logger.Named("session").Info("keys generated", metrics.Fields{"algorithm": "rsa"})
//
// # Health Checks
//
//	server := metrics.NewServer(metrics.ServerConfig{
//		Collector:        collector,
//		Version:          version.String(),
//		EnablePrometheus: true,
//		EnableHealth:     true,
//	})
//	server.AddHealthCheck("selftest", metrics.CachedCheck(selftest.Check))
//	server.AddWarningCheck("memory", metrics.MemoryCheck(1<<30))
//	server.Mount(apiMux)
//
// /health reports unhealthy (a failing critical check, served with 503),
// degraded (a failing warning check, or a message error or key generation
// failure rate above DegradedErrorRate) or healthy.
// /healthz always answers 200; /readyz answers 503 only when unhealthy.
package metrics
