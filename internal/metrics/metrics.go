package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

var (
	// GenerationAttempts counts every outbound model invocation, including retries.
	GenerationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_attempts_total",
		Help: "Number of model invocation attempts, by model.",
	}, []string{"model"})

	// GenerationFailures counts terminal generation failures by error kind.
	GenerationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_failures_total",
		Help: "Number of terminal generation failures, by model and error kind.",
	}, []string{"model", "kind"})

	// GenerationDuration observes wall-clock time of a full generate call,
	// backoff waits included.
	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "Duration of generation requests including retries and backoff.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model"})
)

// Handler returns the Prometheus scrape endpoint as a gin handler.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
