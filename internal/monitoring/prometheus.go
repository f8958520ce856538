// Package monitoring provides Prometheus metrics for the workbench
// authorization service.
//
// Usage:
//
//  1. Setup metrics in your main function:
//     router := gin.New()
//     monitoring.SetupPrometheusMetrics(router)
//
//  2. Add HTTP metrics middleware:
//     router.Use(monitoring.HTTPMetricsMiddleware())
//
//  3. Record custom metrics in your components:
//
//	// Store operations
//	monitoring.RecordStoreOperation("create_identity_permissions", "success")
//
//	// Cache operations
//	monitoring.RecordCacheOperation("get", "hit")
//
//	// Authorization decisions
//	monitoring.RecordAuthzDecision("PROJECT", "allow", time.Since(start))
//
// Available Metrics:
//
//   - workbench_authz_http_requests_total{method, endpoint, status_code}
//   - workbench_authz_http_request_duration_seconds{method, endpoint}
//   - workbench_authz_store_operations_total{operation, status}
//   - workbench_authz_cache_operations_total{operation, result}
//   - workbench_authz_decisions_total{subject_type, outcome}
//   - workbench_authz_decision_duration_seconds{subject_type}
//   - workbench_authz_provisioning_operations_total{operation, status}
//   - workbench_authz_errors_total{type, component}
//   - workbench_authz_build_info{version, component, go_version}
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbench_authz_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workbench_authz_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Permission/group store operation metrics
	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbench_authz_store_operations_total",
			Help: "Total number of permission store operations",
		},
		[]string{"operation", "status"},
	)

	// Cache metrics
	cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbench_authz_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"}, // result: hit, miss, error, success
	)

	// Authorization decision metrics
	authzDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbench_authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"subject_type", "outcome"}, // outcome: allow, deny, error
	)

	authzDecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workbench_authz_decision_duration_seconds",
			Help:    "Authorization decision duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"subject_type"},
	)

	// Permission provisioning metrics
	provisioningOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbench_authz_provisioning_operations_total",
			Help: "Total number of permission provisioning operations",
		},
		[]string{"operation", "status"},
	)

	// Error rate metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbench_authz_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// SetupPrometheusMetrics configures the Prometheus metrics endpoint
func SetupPrometheusMetrics(router gin.IRoutes) {
	// Register build info (ignore if already registered)
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "workbench_authz_build_info",
		Help: "Build information for the workbench authorization service",
		ConstLabels: prometheus.Labels{
			"version":    "v1.2.0",
			"component":  "workbench-authz",
			"go_version": "1.24",
		},
	}, func() float64 { return 1 }))

	// Register metrics (ignore if already registered)
	_ = prometheus.Register(httpRequestsTotal)
	_ = prometheus.Register(httpRequestDuration)
	_ = prometheus.Register(storeOperationsTotal)
	_ = prometheus.Register(cacheOperationsTotal)
	_ = prometheus.Register(authzDecisionsTotal)
	_ = prometheus.Register(authzDecisionDuration)
	_ = prometheus.Register(provisioningOperationsTotal)
	_ = prometheus.Register(errorsTotal)

	// Expose metrics endpoint using default registry
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware collects HTTP request metrics
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		// c.FullPath() is the matched route template, so path parameters do
		// not explode metric cardinality. Unmatched requests report "unknown".
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// RecordStoreOperation records a permission or group store operation
func RecordStoreOperation(operation, status string) {
	storeOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordCacheOperation records a cache operation
func RecordCacheOperation(operation, result string) {
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordAuthzDecision records an authorization decision and its latency
func RecordAuthzDecision(subjectType, outcome string, duration time.Duration) {
	authzDecisionsTotal.WithLabelValues(subjectType, outcome).Inc()
	authzDecisionDuration.WithLabelValues(subjectType).Observe(duration.Seconds())
}

// RecordProvisioningOperation records a permission provisioning operation
func RecordProvisioningOperation(operation, status string) {
	provisioningOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordError records an error by type and component
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
