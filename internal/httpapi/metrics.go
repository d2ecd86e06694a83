package httpapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ragd",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route, and status code.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ragd",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// metricsMiddleware records request counts and latency per route. The
// registered route pattern is used, not the raw URI, to keep label
// cardinality bounded.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request().Method
		requestsTotal.WithLabelValues(method, route, strconv.Itoa(responseStatus(c, err))).Inc()
		requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}
