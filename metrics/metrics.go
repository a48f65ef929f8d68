// metrics.go - Prometheus collectors for the dashboard API
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_http_requests_total",
		Help: "Total number of HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
	errorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_http_errors_total",
		Help: "Total number of requests answered with a 4xx or 5xx status.",
	}, []string{"route"})
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_http_request_duration_seconds",
		Help:    "Request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// MQTTPublishes counts device commands by outcome ("ok" or "error").
	MQTTPublishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_mqtt_publish_total",
		Help: "MQTT publishes by result.",
	}, []string{"result"})
	// QueueLength is the number of timed activations waiting.
	QueueLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_activation_queue_length",
		Help: "Timed activations waiting in the queue.",
	})
	// Locked is 1 while the admin lock is active.
	Locked = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_system_locked",
		Help: "1 while device control is locked by an admin.",
	})
)

func init() {
	prometheus.MustRegister(requestCounter, errorCounter, requestDuration, MQTTPublishes, QueueLength, Locked)
}

// Middleware records one sample per request, labelled by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		requestCounter.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		if status >= 400 {
			errorCounter.WithLabelValues(route).Inc()
		}
	}
}

// Handler serves the exposition format on /metrics.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// ObservePublish records the outcome of an MQTT publish.
func ObservePublish(err error) {
	if err != nil {
		MQTTPublishes.WithLabelValues("error").Inc()
		return
	}
	MQTTPublishes.WithLabelValues("ok").Inc()
}
