package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "canteen",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})

	RequestDurationMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "canteen",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "canteen",
		Name:      "orders_created_total",
		Help:      "Orders created successfully.",
	})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "canteen",
		Name:      "order_status_transitions_total",
		Help:      "Order status transitions by target status and outcome.",
	}, []string{"status", "outcome"})

	BusSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "canteen",
		Name:      "bus_subscribers",
		Help:      "Currently connected notification bus subscribers.",
	})

	BusDroppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "canteen",
		Name:      "bus_dropped_events_total",
		Help:      "Events dropped on full subscriber buffers.",
	})
)

// GinMiddleware records per-route request counts and latency.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		RequestsTotal.WithLabelValues(handler, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDurationMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
