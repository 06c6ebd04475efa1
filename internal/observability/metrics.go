package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shackles"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	ringBinds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ring",
			Name:      "binds_total",
			Help:      "Peer listener bind attempts.",
		},
		[]string{"result"},
	)
	ringPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ring",
			Name:      "peers",
			Help:      "Peers currently registered in the ring table.",
		},
	)
	ringWiring = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ring",
			Name:      "wiring_instructions_total",
			Help:      "Connect instructions delivered to peers.",
		},
		[]string{"result"},
	)
	ringRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ring",
			Name:      "run_duration_seconds",
			Help:      "Time from wiring start until every peer settled.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"result"},
	)
	linkSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "sessions_total",
			Help:      "Link sessions by kind and how they ended.",
		},
		[]string{"kind", "outcome"},
	)
	linkDialAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "dial_attempts_total",
			Help:      "Outbound ring link dial attempts.",
		},
		[]string{"result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			ringBinds,
			ringPeers,
			ringWiring,
			ringRunDuration,
			linkSessions,
			linkDialAttempts,
		)
	})
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordBind(err error) {
	RegisterMetrics()
	ringBinds.WithLabelValues(resultLabel(err)).Inc()
}

func SetRingPeers(n int) {
	RegisterMetrics()
	ringPeers.Set(float64(n))
}

func RecordWiring(err error) {
	RegisterMetrics()
	ringWiring.WithLabelValues(resultLabel(err)).Inc()
}

func RecordRun(err error, duration time.Duration) {
	RegisterMetrics()
	ringRunDuration.WithLabelValues(resultLabel(err)).Observe(duration.Seconds())
}

func RecordLinkSession(kind, outcome string) {
	RegisterMetrics()
	linkSessions.WithLabelValues(kind, outcome).Inc()
}

func RecordLinkDial(err error) {
	RegisterMetrics()
	linkDialAttempts.WithLabelValues(resultLabel(err)).Inc()
}
