// Package observability holds the process-wide Prometheus collectors of the
// decision service.
package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var algorithmLabel atomic.Value

func init() {
	algorithmLabel.Store("hybrid")
	Init(prometheus.DefaultRegisterer, true)
}

// SetAlgorithm sets the value of the "algorithm" label on decision metrics.
func SetAlgorithm(s string) {
	if s == "" {
		s = "hybrid"
	}
	algorithmLabel.Store(s)
}

func getAlgorithm() string {
	if v := algorithmLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "hybrid"
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"method", "route", "status"},
	)

	reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handover_reports_total",
			Help: "Measurement reports by event kind and outcome.",
		},
		[]string{"event", "outcome", "algorithm"},
	)

	reportDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handover_report_duration_seconds",
			Help:    "Time to classify and evaluate one report.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"event"},
	)

	triggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handover_triggers_total",
			Help: "Handover triggers issued, by decision path.",
		},
		[]string{"path", "algorithm"},
	)

	latchState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "handover_decision_latch",
			Help: "1 when the hybrid decision path is armed.",
		},
	)

	tableConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "handover_table_connections",
			Help: "Connections with a neighbour row in the in-memory table.",
		},
	)

	sinkResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handover_sink_results_total",
			Help: "Trigger deliveries by sink and result.",
		},
		[]string{"sink", "result"},
	)

	tableOps = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handover_table_op_seconds",
			Help:    "Latency of external neighbour table operations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"op", "result"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "handover_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		reportsTotal, reportDurationSeconds, triggersTotal,
		latchState, tableConnections, sinkResults, tableOps, buildInfo,
	}
}

// Init registers the collectors on reg. Registering on several registries
// is allowed; registering twice on the same one is a no-op.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveReport(event, outcome string, durationSeconds float64) {
	reportsTotal.WithLabelValues(event, outcome, getAlgorithm()).Inc()
	reportDurationSeconds.WithLabelValues(event).Observe(durationSeconds)
}

func IncTrigger(path string) {
	triggersTotal.WithLabelValues(path, getAlgorithm()).Inc()
}

func SetLatch(armed bool) {
	if armed {
		latchState.Set(1)
		return
	}
	latchState.Set(0)
}

func SetTableConnections(n int) {
	tableConnections.Set(float64(n))
}

func ObserveSink(sink, result string) {
	sinkResults.WithLabelValues(sink, result).Inc()
}

// SinkResultCounter exposes one sink result series, for tests.
func SinkResultCounter(sink, result string) prometheus.Counter {
	return sinkResults.WithLabelValues(sink, result)
}

func ObserveTableOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	tableOps.WithLabelValues(op, result).Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
