package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	lgRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerguard_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	lgRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgerguard_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	lgEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerguard_entries_appended_total",
		Help: "Total audit entries appended, by tenant.",
	}, []string{"tenant"})

	lgExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerguard_exports_total",
		Help: "Total exports rendered, by format.",
	}, []string{"format"})

	lgIntegrityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerguard_integrity_checks_total",
		Help: "Total integrity checks run, by verdict.",
	}, []string{"verdict"})

	lgNotifyDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerguard_notify_deliveries_total",
		Help: "Total entry-created notification deliveries by outcome.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		lgRequestsTotal.WithLabelValues(method, path, status).Inc()
		lgRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAppend records a committed audit entry.
func RecordAppend(tenant string) {
	lgEntriesTotal.WithLabelValues(tenant).Inc()
}

// RecordExport records a rendered export.
func RecordExport(format string) {
	lgExportsTotal.WithLabelValues(format).Inc()
}

// RecordIntegrityCheck records an integrity check verdict.
func RecordIntegrityCheck(valid bool) {
	if valid {
		lgIntegrityChecksTotal.WithLabelValues("valid").Inc()
	} else {
		lgIntegrityChecksTotal.WithLabelValues("invalid").Inc()
	}
}

// RecordNotifyDelivery records a notification delivery attempt.
func RecordNotifyDelivery(success bool) {
	if success {
		lgNotifyDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		lgNotifyDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}
