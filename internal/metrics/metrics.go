package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Metrics carries the process counters on a private registry, so parallel
// test fixtures can each build their own without colliding on registration.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	InvoicesCreatedTotal  prometheus.Counter
	PaymentsRecordedTotal prometheus.Counter
	CustomerMergesTotal   prometheus.Counter

	AuditEntriesTotal prometheus.Counter
	SnapshotsTotal    prometheus.Counter
	SnapshotFailures  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeledger_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradeledger_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		InvoicesCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_invoices_created_total",
			Help: "Invoice drafts opened.",
		}),
		PaymentsRecordedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_payments_recorded_total",
			Help: "Payments recorded against invoices.",
		}),
		CustomerMergesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_customer_merges_total",
			Help: "Customer consolidations performed.",
		}),
		AuditEntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_audit_entries_total",
			Help: "Audit log entries written.",
		}),
		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_snapshots_total",
			Help: "Database snapshots taken.",
		}),
		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_snapshot_failures_total",
			Help: "Database snapshot attempts that failed.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.InvoicesCreatedTotal,
		m.PaymentsRecordedTotal,
		m.CustomerMergesTotal,
		m.AuditEntriesTotal,
		m.SnapshotsTotal,
		m.SnapshotFailures,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request count and latency. The route template is used
// as the label, not the raw path, to keep cardinality bounded.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).
			Observe(time.Since(start).Seconds())
	}
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
