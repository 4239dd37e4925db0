package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry       *prometheus.Registry
	syncRuns       *prometheus.CounterVec // total sync cycles
	syncDuration   prometheus.Histogram   // time per cycle
	discoveries    *prometheus.CounterVec // quorum discovery outcomes
	ipSourceCalls  *prometheus.CounterVec // per-source echo lookups
	dnsRequests    *prometheus.CounterVec // provider api calls
	retryAttempts  prometheus.Counter     // backoff retries across all calls
	backupWrites   *prometheus.CounterVec // record snapshots
	statusRequests *prometheus.CounterVec // badger status store ops
}

func (m *Metrics) IncSyncRun(success bool) {
	m.syncRuns.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) SetSyncDuration(duration time.Duration) {
	m.syncDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncDiscovery(success bool) {
	m.discoveries.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) IncIPSource(source string, success bool) {
	if source == "" {
		return
	}
	m.ipSourceCalls.WithLabelValues(source, boolToResult(success)).Inc()
}

func (m *Metrics) IncDNSRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	m.dnsRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

func (m *Metrics) IncRetry() {
	m.retryAttempts.Inc()
}

func (m *Metrics) IncBackupWrite(success bool) {
	m.backupWrites.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) IncStatusRequest(success bool) {
	m.statusRequests.WithLabelValues(boolToResult(success)).Inc()
}

func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "lookup", "update":
		return true
	}
	return false
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "flaresync"

	m := &Metrics{
		registry: registry,

		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of synchronization cycles",
		}, []string{"status"}),

		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of synchronization cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		discoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_discoveries_total",
			Help:      "Total public IP discovery attempts by outcome",
		}, []string{"status"}),

		ipSourceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_source_requests_total",
			Help:      "Total IP echo source lookups",
		}, []string{"source", "status"}),

		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_requests_total",
			Help:      "Total DNS provider API requests",
		}, []string{"operation", "status"}),

		retryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total retries of transient failures",
		}),

		backupWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_writes_total",
			Help:      "Total DNS record backup snapshots written",
		}, []string{"status"}),

		statusRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_store_requests_total",
			Help:      "Total run-status store operations",
		}, []string{"status"}),
	}

	registry.MustRegister(
		m.syncRuns,
		m.syncDuration,
		m.discoveries,
		m.ipSourceCalls,
		m.dnsRequests,
		m.retryAttempts,
		m.backupWrites,
		m.statusRequests,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
