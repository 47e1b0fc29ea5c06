// Package metrics holds the Prometheus instrumentation for the four CORE
// data-plane subsystems, grounded on the teacher's promauto-based
// Metrics struct pattern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the data plane exposes.
type Metrics struct {
	// L2-FIB
	L2FIBEntries       *prometheus.GaugeVec
	L2FIBLearnCount     prometheus.Gauge
	L2FIBAgedTotal      *prometheus.CounterVec
	L2FIBEventsDropped  prometheus.Counter
	L2FIBScanDuration    prometheus.Histogram

	// Policer
	PolicerPacketsTotal *prometheus.CounterVec
	PolicerBytesTotal   *prometheus.CounterVec

	// Endpoint registry
	EndpointRefcount      *prometheus.GaugeVec
	EndpointPortsInUse    prometheus.Gauge
	EndpointAllocRetries  prometheus.Histogram
	EndpointFreelistDepth prometheus.Gauge

	// TX pacer
	PacerBucket   *prometheus.GaugeVec
	PacerMaxBurst *prometheus.GaugeVec
}

// New creates and registers every collector against the default
// Prometheus registry.
func New() *Metrics {
	return &Metrics{
		L2FIBEntries: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dataplane_l2fib_entries",
				Help: "Current number of L2-FIB entries by bridge domain.",
			},
			[]string{"bridge_domain"},
		),
		L2FIBLearnCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dataplane_l2fib_learn_count",
				Help: "Global learned (non-static) L2-FIB entry count.",
			},
		),
		L2FIBAgedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataplane_l2fib_aged_total",
				Help: "Total L2-FIB entries aged out, by reason (timeout, stale).",
			},
			[]string{"reason"},
		),
		L2FIBEventsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dataplane_l2fib_events_dropped_total",
				Help: "Total MAC event batches dropped because the subscriber queue was full.",
			},
		),
		L2FIBScanDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dataplane_l2fib_scan_duration_seconds",
				Help:    "Wall-clock duration of a single L2-FIB ager scan pass.",
				Buckets: prometheus.DefBuckets,
			},
		),

		PolicerPacketsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataplane_policer_packets_total",
				Help: "Total packets classified by policer and color.",
			},
			[]string{"policer", "color"},
		),
		PolicerBytesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataplane_policer_bytes_total",
				Help: "Total bytes classified by policer and color.",
			},
			[]string{"policer", "color"},
		),

		EndpointRefcount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dataplane_endpoint_refcount",
				Help: "Current refcount of a tracked local endpoint, by port.",
			},
			[]string{"proto", "port"},
		),
		EndpointPortsInUse: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dataplane_endpoint_ports_in_use",
				Help: "Current number of allocated local ports.",
			},
		),
		EndpointAllocRetries: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dataplane_endpoint_alloc_retries",
				Help:    "Number of random draws the port allocator needed per allocation.",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),
		EndpointFreelistDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dataplane_endpoint_freelist_depth",
				Help: "Current number of endpoints pending freelist cleanup.",
			},
		),

		PacerBucket: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dataplane_pacer_bucket_bytes",
				Help: "Current token-bucket level for a paced connection.",
			},
			[]string{"connection"},
		),
		PacerMaxBurst: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dataplane_pacer_max_burst_bytes",
				Help: "Current max-burst ceiling for a paced connection.",
			},
			[]string{"connection"},
		),
	}
}
