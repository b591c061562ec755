// Package metrics exposes Prometheus collectors for HTTP traffic and call
// processing. Labels stay low-cardinality: route templates, never raw paths or ids.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_webhook_events_total",
			Help: "Voice provider webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	outboundCallsPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_outbound_calls_total",
			Help: "Outbound calls requested from the voice provider, by placement result",
		},
		[]string{"result"},
	)

	derivedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "derived_records_total",
			Help: "Orders and reservations created from call structured data",
		},
		[]string{"kind"},
	)
)

// Middleware records request count, latency and in-flight requests.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// WebhookEvent counts one classified webhook event.
func WebhookEvent(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// OutboundCalls counts calls handed to the provider ("placed") or left without
// a provider id ("pending").
func OutboundCalls(result string, n int) {
	if n <= 0 {
		return
	}
	outboundCallsPlaced.WithLabelValues(result).Add(float64(n))
}

// DerivedRecord counts one order or reservation created from a call.
func DerivedRecord(kind string) {
	derivedRecords.WithLabelValues(kind).Inc()
}
