package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics exposes request-level prometheus instruments.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "duekeeper_http_requests_total",
			Help: "Count of HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "duekeeper_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// GinMiddleware records request counts and latencies.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// EngineMetrics counts collections-engine work items.
type EngineMetrics struct {
	snapshots       prometheus.Counter
	forecasts       prometheus.Counter
	dataErrors      *prometheus.CounterVec
	recalcPages     prometheus.Counter
	recalcCustomers *prometheus.CounterVec
}

func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		snapshots: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duekeeper_debtor_snapshots_total",
			Help: "Count of debtor snapshots computed.",
		}),
		forecasts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duekeeper_risk_forecasts_total",
			Help: "Count of payment-risk forecasts computed.",
		}),
		dataErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "duekeeper_ledger_data_errors_total",
			Help: "Count of per-record data errors skipped during aggregation.",
		}, []string{"field"}),
		recalcPages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duekeeper_category_recalc_pages_total",
			Help: "Count of category recalculation pages processed.",
		}),
		recalcCustomers: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "duekeeper_category_recalc_customers_total",
			Help: "Count of customers visited by category recalculation, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *EngineMetrics) IncSnapshot() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}

func (m *EngineMetrics) IncForecast() {
	if m == nil {
		return
	}
	m.forecasts.Inc()
}

func (m *EngineMetrics) IncDataError(field string) {
	if m == nil {
		return
	}
	m.dataErrors.WithLabelValues(field).Inc()
}

func (m *EngineMetrics) IncRecalcPage() {
	if m == nil {
		return
	}
	m.recalcPages.Inc()
}

func (m *EngineMetrics) IncRecalcCustomer(outcome string) {
	if m == nil {
		return
	}
	m.recalcCustomers.WithLabelValues(outcome).Inc()
}
