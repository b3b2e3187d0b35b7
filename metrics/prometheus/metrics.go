// Package prometheus exposes the runtime's Prometheus metrics:
// per-node processing duration/throughput, pipeline lifecycle, model
// registry cache behavior, session counts, and the Speculative VAD
// Gate's confirm/cancel outcomes.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "remotemedia"

var (
	// nodeProcessDuration is a histogram of node.Host.Process call
	// duration per node and execution mode (§4.4, §4.5 item 2).
	nodeProcessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_process_duration_seconds",
			Help:      "Duration of a node's Process call in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "execution_mode"},
	)

	// nodeItemsTotal is a counter of items processed by a node.
	nodeItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_items_total",
			Help:      "Total number of items processed by a node",
		},
		[]string{"node", "status"}, // status: success, error
	)

	// pipelinesActive is a gauge of currently running pipelines.
	pipelinesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipelines_active",
			Help:      "Number of currently running pipelines",
		},
	)

	// pipelineDuration is a histogram of total pipeline run duration.
	pipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Histogram of total pipeline run duration in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"status"}, // status: success, error
	)

	// workersLostTotal is a counter of WorkerLost escalations (§4.2, §7).
	workersLostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workers_lost_total",
			Help:      "Total number of out-of-process workers lost",
		},
		[]string{"node"},
	)

	// modelCacheLookupsTotal is a counter of Registry.GetOrLoad outcomes
	// (§4.3).
	modelCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_cache_lookups_total",
			Help:      "Total model registry lookups by outcome",
		},
		[]string{"outcome"}, // outcome: hit, miss
	)

	// modelRegistryBytes is a gauge of the registry's estimated resident
	// model memory.
	modelRegistryBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_registry_bytes",
			Help:      "Estimated total memory of loaded models",
		},
	)

	// sessionsActive is a gauge of live sessions per node (§4.7).
	sessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live sessions held by a node's statemanager.Manager",
		},
		[]string{"node"},
	)

	// vadSegmentsTotal is a counter of Speculative VAD Gate confirm/
	// cancel decisions (§4.6, scenario S4).
	vadSegmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vad_segments_total",
			Help:      "Total VAD gate segment decisions",
		},
		[]string{"node", "decision"}, // decision: confirmed, cancelled
	)

	allMetrics = []prometheus.Collector{
		nodeProcessDuration,
		nodeItemsTotal,
		pipelinesActive,
		pipelineDuration,
		workersLostTotal,
		modelCacheLookupsTotal,
		modelRegistryBytes,
		sessionsActive,
		vadSegmentsTotal,
	}
)

// RecordNodeProcess records one node.Host.Process call.
func RecordNodeProcess(node, executionMode, status string, durationSeconds float64) {
	nodeProcessDuration.WithLabelValues(node, executionMode).Observe(durationSeconds)
	nodeItemsTotal.WithLabelValues(node, status).Inc()
}

// RecordPipelineStart records a pipeline starting to run.
func RecordPipelineStart() {
	pipelinesActive.Inc()
}

// RecordPipelineEnd records a pipeline reaching a terminal state.
func RecordPipelineEnd(status string, durationSeconds float64) {
	pipelinesActive.Dec()
	pipelineDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordWorkerLost records a WorkerLostError escalation for node.
func RecordWorkerLost(node string) {
	workersLostTotal.WithLabelValues(node).Inc()
}

// RecordModelCacheLookup records a Registry.GetOrLoad hit or miss and
// the registry's current total resident bytes.
func RecordModelCacheLookup(hit bool, totalBytes int64) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	modelCacheLookupsTotal.WithLabelValues(outcome).Inc()
	modelRegistryBytes.Set(float64(totalBytes))
}

// SetSessionsActive records node's current live session count.
func SetSessionsActive(node string, count int) {
	sessionsActive.WithLabelValues(node).Set(float64(count))
}

// RecordVADSegment records a Speculative VAD Gate decision for node.
func RecordVADSegment(node string, confirmed bool) {
	decision := "cancelled"
	if confirmed {
		decision = "confirmed"
	}
	vadSegmentsTotal.WithLabelValues(node, decision).Inc()
}
