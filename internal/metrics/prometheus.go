// Package metrics exposes Prometheus instruments for tool calls, TestRail
// requests and SSE sessions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tool metrics
	ToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testrail_mcp_tool_calls_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "status"}, // status: success|error
	)

	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testrail_mcp_tool_duration_seconds",
			Help:    "Tool invocation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	// Upstream metrics
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testrail_mcp_upstream_requests_total",
			Help: "Total number of TestRail API requests",
		},
		[]string{"method", "endpoint", "status"}, // status: HTTP status code or "error"
	)

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testrail_mcp_upstream_latency_seconds",
			Help:    "TestRail API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// Session metrics
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "testrail_mcp_active_sessions",
			Help: "Number of open SSE sessions",
		},
	)

	RejectedSessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "testrail_mcp_rejected_sessions_total",
			Help: "SSE streams rejected by the exclusive session policy",
		},
	)
)

func init() {
	prometheus.MustRegister(ToolCalls)
	prometheus.MustRegister(ToolDuration)
	prometheus.MustRegister(UpstreamRequests)
	prometheus.MustRegister(UpstreamLatency)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(RejectedSessions)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordToolCall records one tool invocation
func RecordToolCall(tool string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ToolCalls.WithLabelValues(tool, status).Inc()
	ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordUpstreamRequest records one TestRail API request.
// statusCode is zero when no response was received.
func RecordUpstreamRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	UpstreamRequests.WithLabelValues(method, endpoint, status).Inc()
	UpstreamLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
