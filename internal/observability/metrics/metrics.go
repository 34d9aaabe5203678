package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the platform's Prometheus instruments.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	paymentEvents *prometheus.CounterVec
	sseClients    prometheus.Gauge
}

// New registers and returns the platform metrics.
func New() *Metrics {
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warrantydesk_http_requests_total",
		Help: "Counts HTTP requests by method, route, and status.",
	}, []string{"method", "route", "status"})

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warrantydesk_http_duration_seconds",
		Help:    "HTTP request latency per method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warrantydesk_notifications_total",
		Help: "Counts notifications created by feed.",
	}, []string{"feed"})

	paymentEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warrantydesk_payment_events_total",
		Help: "Counts payment-gateway webhook events by type.",
	}, []string{"event_type"})

	sseClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "warrantydesk_sse_clients",
		Help: "Number of connected notification stream clients.",
	})

	prometheus.MustRegister(httpRequests, httpDuration, notifications, paymentEvents, sseClients)

	return &Metrics{
		httpRequests:  httpRequests,
		httpDuration:  httpDuration,
		notifications: notifications,
		paymentEvents: paymentEvents,
		sseClients:    sseClients,
	}
}

// GinMiddleware observes request counts and latency per route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordNotification(feed string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(feed).Inc()
}

func (m *Metrics) RecordPaymentEvent(eventType string) {
	if m == nil {
		return
	}
	m.paymentEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) SSEClientConnected() {
	if m == nil {
		return
	}
	m.sseClients.Inc()
}

func (m *Metrics) SSEClientDisconnected() {
	if m == nil {
		return
	}
	m.sseClients.Dec()
}
