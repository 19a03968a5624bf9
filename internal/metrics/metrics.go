// Package metrics exposes the advisor's Prometheus instrumentation.
// Collectors register themselves on the default registry; the router serves
// them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pipelineRuns counts finished pipeline invocations.
	// Labels: pipeline (analysis, maintenance, partition), status (completed,
	// failed, cancelled).
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgsteward",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Finished pipeline runs by pipeline and status",
	}, []string{"pipeline", "status"})

	// pipelineDuration measures wall-clock pipeline run time.
	// Labels: pipeline.
	pipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pgsteward",
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "Pipeline run duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"pipeline"})

	// signalsDetected counts emitted signals.
	// Labels: signal_type, severity.
	signalsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgsteward",
		Subsystem: "advisor",
		Name:      "signals_total",
		Help:      "Signals detected by type and severity",
	}, []string{"signal_type", "severity"})

	// proposalsCreated counts synthesized proposals.
	// Labels: proposal_type.
	proposalsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgsteward",
		Subsystem: "advisor",
		Name:      "proposals_total",
		Help:      "Proposals synthesized by type",
	}, []string{"proposal_type"})

	// executions counts commands dispatched to monitored databases.
	// Labels: agent (executor, planner), status (success, failure).
	executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgsteward",
		Subsystem: "executor",
		Name:      "executions_total",
		Help:      "Command executions by agent and status",
	}, []string{"agent", "status"})

	// executionDuration measures command execution time on the target.
	// Labels: agent.
	executionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pgsteward",
		Subsystem: "executor",
		Name:      "duration_seconds",
		Help:      "Command execution duration in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"agent"})

	// jobsInFlight gauges currently running jobs.
	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pgsteward",
		Subsystem: "jobs",
		Name:      "running",
		Help:      "Jobs currently running",
	})
)

// RecordPipelineRun records one finished pipeline run.
func RecordPipelineRun(pipeline, status string, durationSec float64) {
	pipelineRuns.WithLabelValues(pipeline, status).Inc()
	pipelineDuration.WithLabelValues(pipeline).Observe(durationSec)
}

// RecordSignal records one detected signal.
func RecordSignal(signalType, severity string) {
	signalsDetected.WithLabelValues(signalType, severity).Inc()
}

// RecordProposal records one synthesized proposal.
func RecordProposal(proposalType string) {
	proposalsCreated.WithLabelValues(proposalType).Inc()
}

// RecordExecution records one command execution attempt.
func RecordExecution(agent string, success bool, durationSec float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	executions.WithLabelValues(agent, status).Inc()
	executionDuration.WithLabelValues(agent).Observe(durationSec)
}

// JobStarted marks one job as running.
func JobStarted() {
	jobsInFlight.Inc()
}

// JobFinished marks one running job as done.
func JobFinished() {
	jobsInFlight.Dec()
}
