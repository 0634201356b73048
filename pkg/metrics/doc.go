// Package metrics provides observability primitives for the messenger
// client and relay.
//
// # Overview
//
// The package offers:
//   - a Collector of atomic counters and latency histograms
//   - a Prometheus exporter built on the client_golang library
//   - a Tracer interface with an OpenTelemetry adapter
//   - structured logging with levels
//   - health check endpoints backed by the crypto self-tests
//
// Key material and message bodies are never logged. Use Fingerprint to
// identify a key in log output.
//
// # Metrics Collection
//
//	collector := metrics.NewCollector(metrics.Labels{"instance": "relay-1"})
//
//	collector.RecordMessageSealed(mode.Hybrid, len(payload))
//	collector.RecordPolicyRejection()
//	collector.RecordEncryptLatency(d)
//
//	snap := collector.Snapshot()
//	fmt.Println(snap.MessagesSealed.Hybrid)
//
// MessageObserver and RelayObserver wrap a collector, tracer and logger
// and are what the messaging and relay packages call.
//
// # Prometheus Export
//
//	exporter := metrics.NewPrometheusExporter(collector, "qmsg")
//	http.Handle("/metrics", exporter.Handler())
//
// The exporter is a prometheus.Collector. Processes with their own
// registry can call Register instead of serving Handler. Per-mode counters
// carry a mode label:
//
//	qmsg_messages_sealed_total{instance="relay-1",mode="hybrid"} 12
//
// # Tracing
//
//	metrics.SetTracer(metrics.NewSimpleTracer())
//	ctx, end := metrics.StartSpan(ctx, metrics.SpanMessageEncrypt,
//		metrics.WithAttributes(metrics.AttrCryptoMode.String("hybrid")))
//	defer end(nil)
//
// Attributes are OpenTelemetry attribute.KeyValue values in every build.
//
// To forward spans to OpenTelemetry, install an SDK TracerProvider with
// otel.SetTracerProvider and use:
//
//	metrics.SetTracer(metrics.NewOTelTracer("qmsg"))
//
// # Structured Logging
//
//	logger := metrics.NewLogger(
//		metrics.WithLevel(metrics.LevelInfo),
//		metrics.WithFormat(metrics.FormatJSON),
//	)
//	logger.Named("relay").Warn("inbox rate limit exceeded", metrics.Fields{
//		"inbox_id": inboxID,
//	})
//
// # Observability Server
//
//	server := metrics.NewServer(metrics.ServerConfig{
//		Collector:        collector,
//		Version:          version.String(),
//		EnablePrometheus: true,
//		EnableHealth:     true,
//	})
//	server.AddHealthCheck("self-test", metrics.SelfTestCheck())
//	server.AddAdvisoryCheck("policy", metrics.PolicyCheck(getConfig, mode.Hybrid))
//	go server.ListenAndServe(":9090")
//
// Critical checks that fail make /health and /readyz answer 503. Advisory
// checks only mark the service degraded.
//
// This provides:
//   - /metrics - Prometheus metrics
//   - /health  - Detailed health status
//   - /healthz - Liveness probe
//   - /readyz  - Readiness probe
package metrics
