package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analysesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analyses_submitted_total",
		Help: "Total analysis submissions that passed upload ingestion",
	})
	analysesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analyses_completed_total",
		Help: "Total analyses persisted",
	})
	analysesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyses_failed_total",
		Help: "Total analyses that failed, by pipeline stage",
	}, []string{"stage"})

	workerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_duration_seconds",
		Help:    "Wall time of external analysis worker runs",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"outcome"})
	workerInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_inflight",
		Help: "Analysis worker processes currently running",
	})
)

// IncAnalysisSubmitted increments the submitted counter.
func IncAnalysisSubmitted() {
	analysesSubmitted.Inc()
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysesCompleted.Inc()
}

// IncAnalysisFailed increments the failed counter for a pipeline stage.
func IncAnalysisFailed(stage string) {
	analysesFailed.WithLabelValues(stage).Inc()
}

// ObserveWorkerDuration records a worker run. outcome is "ok" or a failure kind.
func ObserveWorkerDuration(outcome string, seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	workerDuration.WithLabelValues(outcome).Observe(seconds)
}

// WorkerStarted and WorkerFinished track running worker processes.
func WorkerStarted() { workerInflight.Inc() }

func WorkerFinished() { workerInflight.Dec() }

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
