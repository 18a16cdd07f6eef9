package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	queueSize    *prometheus.GaugeVec
	enqueueTotal *prometheus.CounterVec
	dequeueTotal *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	activeSessions      prometheus.Gauge
	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchRounds   prometheus.Histogram
	routingTotal     *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec

	providerCallTotal    *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	providerErrorsTotal  *prometheus.CounterVec
	providerRetriesTotal *prometheus.CounterVec

	tokensTotal *prometheus.CounterVec
	costUSD     *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			queueSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "mate_queue_size",
					Help: "Current queue size by lane.",
				},
				[]string{"lane"},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mate_enqueue_total",
					Help: "Total enqueue operations by lane.",
				},
				[]string{"lane"},
			),
			dequeueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mate_dequeue_total",
					Help: "Total dequeue/completion operations by lane and status.",
				},
				[]string{"lane", "status"},
			),
			taskDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "mate_task_duration_seconds",
					Help:    "Task execution duration in seconds by lane.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"lane"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "mate_active_sessions",
					Help: "Current active session count.",
				},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "mate_session_load_duration_seconds",
					Help:    "Session load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "mate_session_save_duration_seconds",
					Help:    "Session save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			dispatchTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mate_dispatch_total",
					Help: "Total dispatches by role and terminal state.",
				},
				[]string{"role", "state"},
			),
			dispatchDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "mate_dispatch_duration_seconds",
					Help:    "End-to-end dispatch duration in seconds by role.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"role"},
			),
			dispatchRounds: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "mate_dispatch_rounds",
					Help:    "Reasoning rounds consumed per dispatch.",
					Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
				},
			),
			routingTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mate_routing_total",
					Help: "Total routing decisions by role and whether the default role was used.",
				},
				[]string{"role", "fallback"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mate_tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "mate_tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mate_tool_errors_total",
					Help: "Total tool execution errors by tool.",
				},
				[]string{"tool"},
			),
			providerCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mate_provider_call_total",
					Help: "Total model calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			providerCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "mate_provider_call_duration_seconds",
					Help:    "Model call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			providerErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mate_provider_errors_total",
					Help: "Total model call errors by provider.",
				},
				[]string{"provider"},
			),
			providerRetriesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mate_provider_retries_total",
					Help: "Total model call retries by provider.",
				},
				[]string{"provider"},
			),
			tokensTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mate_tokens_total",
					Help: "Total tokens by model and direction (input/output).",
				},
				[]string{"model", "direction"},
			),
			costUSD: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mate_cost_usd_total",
					Help: "Estimated spend in USD by model.",
				},
				[]string{"model"},
			),
		}

		prometheus.MustRegister(
			m.queueSize,
			m.enqueueTotal,
			m.dequeueTotal,
			m.taskDuration,
			m.activeSessions,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.dispatchTotal,
			m.dispatchDuration,
			m.dispatchRounds,
			m.routingTotal,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.providerCallTotal,
			m.providerCallDuration,
			m.providerErrorsTotal,
			m.providerRetriesTotal,
			m.tokensTotal,
			m.costUSD,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordQueueEnqueue(lane string, queueSize int) {
	m := getMetrics()
	m.enqueueTotal.WithLabelValues(lane).Inc()
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func SetQueueSize(lane string, queueSize int) {
	m := getMetrics()
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func RecordQueueCompletion(lane string, duration time.Duration, success bool, queueSize int) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.dequeueTotal.WithLabelValues(lane, status).Inc()
	m.taskDuration.WithLabelValues(lane).Observe(duration.Seconds())
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func RecordSessionLoad(duration time.Duration) {
	m := getMetrics()
	m.sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	m := getMetrics()
	m.sessionSaveDuration.Observe(duration.Seconds())
}

func RecordDispatch(role, state string, duration time.Duration, rounds int) {
	m := getMetrics()
	m.dispatchTotal.WithLabelValues(role, state).Inc()
	m.dispatchDuration.WithLabelValues(role).Observe(duration.Seconds())
	m.dispatchRounds.Observe(float64(rounds))
}

func RecordRoutingDecision(role string, fallback bool) {
	m := getMetrics()
	fb := "false"
	if fallback {
		fb = "true"
	}
	m.routingTotal.WithLabelValues(role, fb).Inc()
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}

func RecordProviderCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.providerCallTotal.WithLabelValues(provider, status).Inc()
	m.providerCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if !success {
		m.providerErrorsTotal.WithLabelValues(provider).Inc()
	}
}

func RecordProviderRetry(provider string) {
	m := getMetrics()
	m.providerRetriesTotal.WithLabelValues(provider).Inc()
}

func RecordTokens(model string, input, output int) {
	m := getMetrics()
	m.tokensTotal.WithLabelValues(model, "input").Add(float64(input))
	m.tokensTotal.WithLabelValues(model, "output").Add(float64(output))
}

func RecordCost(model string, usd float64) {
	m := getMetrics()
	m.costUSD.WithLabelValues(model).Add(usd)
}
