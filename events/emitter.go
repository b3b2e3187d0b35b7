package events

import "time"

// Emitter publishes runtime events for a single pipeline run, stamping
// each with the pipeline's id so subscribers (eventsgateway clients,
// loggers) don't need to thread it through themselves.
type Emitter struct {
	bus        *EventBus
	pipelineID string
}

// NewEmitter creates an emitter bound to bus and pipelineID.
func NewEmitter(bus *EventBus, pipelineID string) *Emitter {
	return &Emitter{bus: bus, pipelineID: pipelineID}
}

func (e *Emitter) emit(eventType EventType, nodeID, sessionID string, data EventData) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(&Event{
		Type:       eventType,
		Timestamp:  time.Now(),
		PipelineID: e.pipelineID,
		NodeID:     nodeID,
		SessionID:  sessionID,
		Data:       data,
	})
}

// PipelineStarted emits the pipeline.started event.
func (e *Emitter) PipelineStarted(nodeCount int) {
	e.emit(EventPipelineStarted, "", "", &PipelineStartedData{NodeCount: nodeCount})
}

// PipelineCompleted emits the pipeline.completed event.
func (e *Emitter) PipelineCompleted(duration time.Duration) {
	e.emit(EventPipelineCompleted, "", "", &PipelineCompletedData{Duration: duration})
}

// PipelineFailed emits the pipeline.failed event.
func (e *Emitter) PipelineFailed(err error, duration time.Duration) {
	e.emit(EventPipelineFailed, "", "", &PipelineFailedData{Error: err, Duration: duration})
}

// NodeReady emits the node.ready event once a node's READY handshake
// completes (§4.2, §4.5 item 4).
func (e *Emitter) NodeReady(nodeID, executionMode string) {
	e.emit(EventNodeReady, nodeID, "", &NodeReadyData{ExecutionMode: executionMode})
}

// NodeProcessFailed emits the node.process_failed event.
func (e *Emitter) NodeProcessFailed(nodeID string, err error, critical bool, duration time.Duration) {
	e.emit(EventNodeProcessFailed, nodeID, "", &NodeProcessFailedData{Error: err, Critical: critical, Duration: duration})
}

// WorkerStartupTimeout emits the worker.startup_timeout event.
func (e *Emitter) WorkerStartupTimeout(nodeID string) {
	e.emit(EventWorkerStartupTimeout, nodeID, "", &WorkerStartupTimeoutData{})
}

// WorkerLost emits the worker.lost event (§4.2, §7, scenario S6).
func (e *Emitter) WorkerLost(nodeID string, err error) {
	e.emit(EventWorkerLost, nodeID, "", &WorkerLostData{Error: err})
}

// VADSegmentConfirmed emits the vad.segment_confirmed event (§4.6).
func (e *Emitter) VADSegmentConfirmed(nodeID, sessionID, segmentID string) {
	e.emit(EventVADSegmentConfirmed, nodeID, sessionID, &VADSegmentData{SegmentID: segmentID})
}

// VADSegmentCancelled emits the vad.segment_cancelled event (§4.6, scenario S4).
func (e *Emitter) VADSegmentCancelled(nodeID, sessionID, segmentID string) {
	e.emit(EventVADSegmentCancelled, nodeID, sessionID, &VADSegmentData{SegmentID: segmentID})
}

// SessionEvicted emits the session.evicted event (§4.7).
func (e *Emitter) SessionEvicted(sessionID, reason string) {
	e.emit(EventSessionEvicted, "", sessionID, &SessionEvictedData{Reason: reason})
}
