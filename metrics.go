package main

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billsplit_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	claimsFinalized = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billsplit_claims_finalized_total",
		Help: "Claim batches committed.",
	})

	claimsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billsplit_claims_rejected_total",
		Help: "Claim batches rejected, by reason.",
	}, []string{"reason"})

	subdivisions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billsplit_subdivisions_total",
		Help: "Successful line item subdivisions.",
	})
)

func init() {
	prometheus.MustRegister(httpDuration, claimsFinalized, claimsRejected, subdivisions)
}

// metricsMiddleware records request latency per templated route so item ids
// do not explode label cardinality.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
