// Package metrics exposes Prometheus instrumentation for rule evaluation
// and the gRPC API.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "listingkeeper"

// Collector owns a private registry so several instances (one per test)
// never collide on metric names. It implements rules.Observer.
type Collector struct {
	registry *prometheus.Registry

	runs            prometheus.Counter
	ruleOutcomes    *prometheus.CounterVec
	rulesApplied    prometheus.Histogram
	runDuration     prometheus.Histogram
	grpcRequests    *prometheus.CounterVec
	grpcDuration    *prometheus.HistogramVec
	logsPersisted   *prometheus.CounterVec
	rateLimitedReqs prometheus.Counter
}

// New creates a Collector with Go runtime and process collectors registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of product evaluation passes.",
		}),
		ruleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_outcomes_total",
			Help:      "Rules visited during evaluation by outcome.",
		}, []string{"outcome"}),
		rulesApplied: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rules_applied_per_evaluation",
			Help:      "Number of rules applied in one evaluation pass.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of one evaluation pass.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		grpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC requests.",
		}, []string{"method", "code"}),
		grpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "Histogram of gRPC request durations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		logsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_logs_total",
			Help:      "Execution log entries handed to the log store by result.",
		}, []string{"result"}),
		rateLimitedReqs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.runs,
		c.ruleOutcomes,
		c.rulesApplied,
		c.runDuration,
		c.grpcRequests,
		c.grpcDuration,
		c.logsPersisted,
		c.rateLimitedReqs,
	)
	return c
}

// ObserveRule counts one rule outcome (matched, unmatched, skipped, failed).
func (c *Collector) ObserveRule(outcome string) {
	c.ruleOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveRun records one completed evaluation pass.
func (c *Collector) ObserveRun(duration time.Duration, applied int) {
	c.runs.Inc()
	c.runDuration.Observe(duration.Seconds())
	c.rulesApplied.Observe(float64(applied))
}

// ObserveLogs counts n log entries as persisted or dropped.
func (c *Collector) ObserveLogs(n int, persisted bool) {
	result := "persisted"
	if !persisted {
		result = "dropped"
	}
	c.logsPersisted.WithLabelValues(result).Add(float64(n))
}

// ObserveRateLimited counts one rejected request.
func (c *Collector) ObserveRateLimited() {
	c.rateLimitedReqs.Inc()
}

// UnaryInterceptor records request counts by status code and latency.
func (c *Collector) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		c.grpcRequests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		c.grpcDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry for tests and embedding.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
