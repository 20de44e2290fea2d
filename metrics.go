package afflow

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// pipelineMetrics is the shared Prometheus instrumentation for every
// orchestrator in the process. Collectors are registered once against the
// default registerer; each orchestrator labels its series with its own ID.
type pipelineMetrics struct {
	stageRuns     *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	prospects     *prometheus.GaugeVec
	affiliates    *prometheus.GaugeVec
	commissions   *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	metrics     *pipelineMetrics
)

func sharedMetrics() *pipelineMetrics {
	metricsOnce.Do(func() {
		metrics = &pipelineMetrics{
			stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "afflow",
				Name:      "stage_runs_total",
				Help:      "Stage invocations by pipeline and stage.",
			}, []string{"pipeline", "stage"}),
			stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "afflow",
				Name:      "stage_failures_total",
				Help:      "Stage invocations that ended in a captured error.",
			}, []string{"pipeline", "stage"}),
			prospects: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "afflow",
				Name:      "prospects",
				Help:      "Prospect pool size after the last step.",
			}, []string{"pipeline"}),
			affiliates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "afflow",
				Name:      "active_affiliates",
				Help:      "Active affiliate roster size after the last step.",
			}, []string{"pipeline"}),
			commissions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "afflow",
				Name:      "commissions_logged",
				Help:      "Commission log length after the last step.",
			}, []string{"pipeline"}),
		}
		prometheus.MustRegister(
			metrics.stageRuns,
			metrics.stageFailures,
			metrics.prospects,
			metrics.affiliates,
			metrics.commissions,
		)
	})
	return metrics
}
