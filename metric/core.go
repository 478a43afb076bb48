package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all engine-level metrics (not test-specific)
type Metrics struct {
	// Graph metrics
	GraphBuildDuration prometheus.Histogram
	GraphNodes         *prometheus.GaugeVec
	GraphEdges         *prometheus.GaugeVec
	GraphRebuilds      prometheus.Counter

	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryRecords  *prometheus.HistogramVec

	// Ingest metrics
	IngestRecords  *prometheus.CounterVec
	IngestDuration *prometheus.HistogramVec
	ParseFailures  *prometheus.CounterVec

	// Storage metrics
	StorageOperations *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// NATS metrics
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all engine metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Graph metrics
		GraphBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "semfuse",
				Subsystem: "graph",
				Name:      "build_duration_seconds",
				Help:      "Metadata graph build duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		GraphNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "semfuse",
				Subsystem: "graph",
				Name:      "nodes",
				Help:      "Number of nodes in the metadata graph",
			},
			[]string{"type"},
		),

		GraphEdges: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "semfuse",
				Subsystem: "graph",
				Name:      "edges",
				Help:      "Number of edges in the metadata graph",
			},
			[]string{"relation"},
		),

		GraphRebuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "semfuse",
				Subsystem: "graph",
				Name:      "rebuilds_total",
				Help:      "Total number of metadata graph rebuilds",
			},
		),

		// Query metrics
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semfuse",
				Subsystem: "query",
				Name:      "total",
				Help:      "Total number of queries executed",
			},
			[]string{"action", "status"},
		),

		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "semfuse",
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Query execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),

		QueryRecords: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "semfuse",
				Subsystem: "query",
				Name:      "records",
				Help:      "Number of records returned per query",
				Buckets:   []float64{0, 1, 10, 100, 1000, 10000},
			},
			[]string{"action"},
		),

		// Ingest metrics
		IngestRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semfuse",
				Subsystem: "ingest",
				Name:      "records_total",
				Help:      "Total number of records ingested",
			},
			[]string{"entity", "status"},
		),

		IngestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "semfuse",
				Subsystem: "ingest",
				Name:      "duration_seconds",
				Help:      "Per-source ingest duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),

		ParseFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semfuse",
				Subsystem: "ingest",
				Name:      "parse_failures_total",
				Help:      "Total number of source records that failed to parse",
			},
			[]string{"entity"},
		),

		// Storage metrics
		StorageOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semfuse",
				Subsystem: "storage",
				Name:      "operations_total",
				Help:      "Total number of document store operations",
			},
			[]string{"backend", "operation", "status"},
		),

		// Error metrics
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "semfuse",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),

		// NATS metrics
		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "semfuse",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "semfuse",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "semfuse",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "semfuse",
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

// RecordGraphBuild records a completed metadata graph build
func (c *Metrics) RecordGraphBuild(duration time.Duration, entityNodes, fieldNodes, hasFieldEdges, referenceEdges int) {
	c.GraphBuildDuration.Observe(duration.Seconds())
	c.GraphNodes.WithLabelValues("entity").Set(float64(entityNodes))
	c.GraphNodes.WithLabelValues("field").Set(float64(fieldNodes))
	c.GraphEdges.WithLabelValues("has_field").Set(float64(hasFieldEdges))
	c.GraphEdges.WithLabelValues("references").Set(float64(referenceEdges))
	c.GraphRebuilds.Inc()
}

// RecordQuery records a query execution with its outcome
func (c *Metrics) RecordQuery(action, status string, duration time.Duration, records int) {
	c.QueriesTotal.WithLabelValues(action, status).Inc()
	c.QueryDuration.WithLabelValues(action).Observe(duration.Seconds())
	c.QueryRecords.WithLabelValues(action).Observe(float64(records))
}

// RecordIngest records ingested record counts for an entity
func (c *Metrics) RecordIngest(entity, status string, count int) {
	c.IngestRecords.WithLabelValues(entity, status).Add(float64(count))
}

// RecordIngestDuration records how long a single source took to load
func (c *Metrics) RecordIngestDuration(source string, duration time.Duration) {
	c.IngestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordParseFailure increments the parse failure counter for an entity
func (c *Metrics) RecordParseFailure(entity string) {
	c.ParseFailures.WithLabelValues(entity).Inc()
}

// RecordStorageOperation increments the document store operation counter
func (c *Metrics) RecordStorageOperation(backend, operation, status string) {
	c.StorageOperations.WithLabelValues(backend, operation, status).Inc()
}

// RecordError increments error counter
func (c *Metrics) RecordError(component, errorType string) {
	c.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSRTT updates NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}
