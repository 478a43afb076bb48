// Package metric provides Prometheus metrics infrastructure for the engine.
//
// # Overview
//
// The package wraps a dedicated prometheus.Registry with duplicate-registration
// detection and classified errors, exposes the core engine metrics (graph
// builds, query execution, ingest, storage operations, NATS connection), and
// serves them over HTTP.
//
// # core Types
//
//   - MetricsRegistry: registration and lifecycle of metrics, keyed by
//     "component.metric" to catch duplicates before Prometheus does
//   - Metrics: pre-built engine metrics with Record* helpers
//   - Server: HTTP server exposing /metrics, /health, and an index page
//
// # Usage
//
// Create a registry and record engine activity:
//
//	registry := metric.NewMetricsRegistry()
//	core := registry.CoreMetrics()
//	core.RecordQuery("get_entity", "success", elapsed, len(records))
//
// Components register their own metrics through the MetricsRegistrar
// interface:
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "semfuse",
//	    Subsystem: "loader",
//	    Name:      "sources_total",
//	    Help:      "Total number of sources loaded",
//	})
//	if err := registry.RegisterCounter("loader", "sources_total", counter); err != nil {
//	    return err
//	}
//
// Serve the metrics endpoint:
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	go server.Start()
//	defer server.Stop()
//
// # Naming Conventions
//
// All engine metrics use the "semfuse" namespace with a subsystem per concern
// (graph, query, ingest, storage, errors, nats). Component-specific metrics
// registered through the registrar should follow the same convention.
package metric
