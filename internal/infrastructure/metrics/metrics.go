package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Compilation
	CompileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractforge_compile_runs_total",
			Help: "Number of compile runs by toolchain and result",
		},
		[]string{"toolchain", "result"}, // result: pass|fail|timeout
	)
	CompileDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contractforge_compile_duration_seconds",
			Help:    "Duration of compile runs",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms..128s
		},
		[]string{"toolchain"},
	)
	CompileSlotsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "contractforge_compile_slots_in_use",
			Help: "Compiler pool slots currently held",
		},
	)
	WorkspaceCleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contractforge_workspace_cleanup_failures_total",
			Help: "Workspaces that could not be removed after a compile",
		},
	)

	// LLM
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractforge_llm_requests_total",
			Help: "Number of LLM requests by model and kind",
		},
		[]string{"model", "kind"}, // kind: generate|explain
	)

	// Contract catalogue
	ContractStoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractforge_contract_store_ops_total",
			Help: "Contract catalogue operations performed",
		},
		[]string{"op"}, // op: put|list
	)

	// HTTP
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path"},
	)
	HTTPErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP request errors.",
		},
		[]string{"method", "path", "status"},
	)

	// Errors
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractforge_errors_total",
			Help: "Errors encountered in components",
		},
		[]string{"component", "type"},
	)
)

func init() {
	prometheus.MustRegister(
		// Compile
		CompileRuns,
		CompileDurationSeconds,
		CompileSlotsInUse,
		WorkspaceCleanupFailures,
		// LLM
		LLMRequests,
		// Store
		ContractStoreOps,
		// HTTP
		HTTPRequestDuration,
		HTTPRequests,
		HTTPErrors,
		// Errors
		Errors,
	)
}

// StartMetricsServer serves /metrics on a dedicated listener. It blocks.
func StartMetricsServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

// Compile
func IncCompileRun(toolchain, result string) {
	CompileRuns.WithLabelValues(toolchain, result).Inc()
}

func ObserveCompileDuration(toolchain string, d time.Duration) {
	CompileDurationSeconds.WithLabelValues(toolchain).Observe(d.Seconds())
}

func IncCompileSlots() {
	CompileSlotsInUse.Inc()
}

func DecCompileSlots() {
	CompileSlotsInUse.Dec()
}

func IncWorkspaceCleanupFailure() {
	WorkspaceCleanupFailures.Inc()
}

// LLM
func IncLLMRequest(model, kind string) {
	LLMRequests.WithLabelValues(model, kind).Inc()
}

// Store
func IncContractStoreOp(op string) {
	ContractStoreOps.WithLabelValues(op).Inc()
}

// HTTP
func ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequests.WithLabelValues(method, path).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
	if status >= 400 {
		HTTPErrors.WithLabelValues(method, path, code).Inc()
	}
}

// Errors
func IncError(component, typ string) {
	Errors.WithLabelValues(component, typ).Inc()
}
