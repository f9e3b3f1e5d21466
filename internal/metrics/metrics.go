package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the access gate.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DecisionsTotal    *prometheus.CounterVec
	ConsumptionsTotal *prometheus.CounterVec
	RedemptionsTotal  *prometheus.CounterVec
	RenewalsTotal     *prometheus.CounterVec

	JobRunsTotal       *prometheus.CounterVec
	ExpiredSweptTotal  prometheus.Counter
	CountersResetTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scangate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scangate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scangate_access_decisions_total",
				Help: "Access decisions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		ConsumptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scangate_consumptions_total",
				Help: "Tool consumption attempts by outcome",
			},
			[]string{"outcome"},
		),
		RedemptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scangate_coupon_redemptions_total",
				Help: "Coupon redemption attempts by outcome",
			},
			[]string{"outcome"},
		),
		RenewalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scangate_external_renewals_total",
				Help: "Billing renewal events by result",
			},
			[]string{"result"},
		),
		JobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scangate_job_runs_total",
				Help: "Scheduled job runs by job and status",
			},
			[]string{"job", "status"},
		),
		ExpiredSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scangate_subscriptions_expired_total",
				Help: "Subscriptions moved to expired by the sweep",
			},
		),
		CountersResetTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scangate_usage_counters_reset_total",
				Help: "Usage counters reset by period",
			},
			[]string{"period"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DecisionsTotal,
		m.ConsumptionsTotal,
		m.RedemptionsTotal,
		m.RenewalsTotal,
		m.JobRunsTotal,
		m.ExpiredSweptTotal,
		m.CountersResetTotal,
	)

	return m
}

// Middleware records request counts and latency using the route path, not the raw URL.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler exposes the registry on /metrics.
func Handler(gatherer prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
