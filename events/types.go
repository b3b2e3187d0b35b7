package events

import "time"

// EventType identifies the type of event emitted by the runtime.
type EventType string

const (
	// EventPipelineStarted marks a pipeline run starting.
	EventPipelineStarted EventType = "pipeline.started"
	// EventPipelineCompleted marks a pipeline run completing cleanly.
	EventPipelineCompleted EventType = "pipeline.completed"
	// EventPipelineFailed marks a pipeline run escalating a critical error.
	EventPipelineFailed EventType = "pipeline.failed"

	// EventNodeReady marks a node's READY handshake completing (§4.2,
	// §4.5 item 4), in-process or out-of-process.
	EventNodeReady EventType = "node.ready"
	// EventNodeProcessFailed marks a node.Host.Process call returning
	// an error (§4.4 item 8).
	EventNodeProcessFailed EventType = "node.process_failed"

	// EventWorkerStartupTimeout marks an out-of-process worker missing
	// its READY deadline (§7).
	EventWorkerStartupTimeout EventType = "worker.startup_timeout"
	// EventWorkerLost marks an out-of-process worker exiting
	// unexpectedly or going heartbeat-stale (§4.2, §7).
	EventWorkerLost EventType = "worker.lost"

	// EventVADSegmentConfirmed marks a Speculative VAD Gate segment
	// confirmed as real speech (§4.6).
	EventVADSegmentConfirmed EventType = "vad.segment_confirmed"
	// EventVADSegmentCancelled marks a Speculative VAD Gate segment
	// cancelled as a false positive (§4.6, scenario S4).
	EventVADSegmentCancelled EventType = "vad.segment_cancelled"

	// EventSessionEvicted marks a statemanager.Session removed by LRU
	// capacity pressure or TTL sweep (§4.7).
	EventSessionEvicted EventType = "session.evicted"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents a runtime event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	// PipelineID identifies the Pipeline run this event belongs to
	// (scheduler.Pipeline.id).
	PipelineID string
	// NodeID identifies the node within the pipeline graph this event
	// concerns, empty for pipeline-level events.
	NodeID    string
	SessionID string
	Data      EventData
}

type baseEventData struct{}

func (baseEventData) eventData() {}

// PipelineStartedData contains data for pipeline start events.
type PipelineStartedData struct {
	baseEventData
	NodeCount int
}

// PipelineCompletedData contains data for pipeline completion events.
type PipelineCompletedData struct {
	baseEventData
	Duration time.Duration
}

// PipelineFailedData contains data for pipeline failure events.
type PipelineFailedData struct {
	baseEventData
	Error    error
	Duration time.Duration
}

// NodeReadyData contains data for a node's READY handshake.
type NodeReadyData struct {
	baseEventData
	ExecutionMode string // "in_process" or "out_of_process"
}

// NodeProcessFailedData contains data for a failed node Process call.
type NodeProcessFailedData struct {
	baseEventData
	Error    error
	Critical bool
	Duration time.Duration
}

// WorkerStartupTimeoutData contains data for a worker missing READY.
type WorkerStartupTimeoutData struct {
	baseEventData
}

// WorkerLostData contains data for a lost out-of-process worker.
type WorkerLostData struct {
	baseEventData
	Error error
}

// VADSegmentData contains data for a VAD gate confirm/cancel decision.
type VADSegmentData struct {
	baseEventData
	SegmentID string
}

// SessionEvictedData contains data for a session eviction.
type SessionEvictedData struct {
	baseEventData
	Reason string // "lru_capacity" or "ttl_sweep"
}
