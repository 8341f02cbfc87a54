package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/givelift/send-scheduler/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduling metrics

	EmailsScheduledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sendsched",
		Name:      "emails_scheduled_total",
		Help:      "Emails handed to the delayed-task runner.",
	})

	ScheduleBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sendsched",
		Name:      "schedule_batch_size",
		Help:      "Eligible emails per scheduling pass.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	})

	DispatchFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sendsched",
		Name:      "dispatch_failures_total",
		Help:      "External runner calls that failed, by operation.",
	}, []string{"op"})

	// Runner metrics

	TasksInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sendsched",
		Name:      "runner_tasks_in_flight",
		Help:      "Trigger tasks currently being executed.",
	})

	TaskPickupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sendsched",
		Name:      "task_pickup_latency_seconds",
		Help:      "Time from a task's fire-at instant to a worker claiming it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	SendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sendsched",
		Name:      "sends_total",
		Help:      "Trigger tasks finished, by outcome.",
	}, []string{"outcome"})

	SendDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sendsched",
		Name:      "send_duration_seconds",
		Help:      "Duration of one email delivery attempt.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	// Reaper metrics

	ReaperRescuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sendsched",
		Name:      "reaper_rescued_total",
		Help:      "Stale tasks handled by the reaper, by action.",
	}, []string{"action"})

	// Worker lifecycle

	WorkerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sendsched",
		Name:      "worker_start_time_seconds",
		Help:      "Unix timestamp when the runner worker started.",
	})

	WorkerShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sendsched",
		Name:      "worker_shutdowns_total",
		Help:      "Number of times the runner worker has shut down.",
	})
)

func Register() {
	prometheus.MustRegister(
		EmailsScheduledTotal,
		ScheduleBatchSize,
		DispatchFailuresTotal,
		TasksInFlight,
		TaskPickupLatency,
		SendsTotal,
		SendDuration,
		ReaperRescuedTotal,
		WorkerStartTime,
		WorkerShutdownsTotal,
	)
}

// NewServer exposes /metrics plus liveness and readiness probes.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, result)
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
