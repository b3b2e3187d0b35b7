package events

import (
	"testing"
	"time"
)

func TestBaseEventData_EventData(t *testing.T) {
	var _ EventData = baseEventData{}
	bed := baseEventData{}
	bed.eventData() // Should not panic
}

func TestEventDataStructs(t *testing.T) {
	var _ EventData = &PipelineStartedData{}
	var _ EventData = &PipelineCompletedData{}
	var _ EventData = &PipelineFailedData{}
	var _ EventData = &NodeReadyData{}
	var _ EventData = &NodeProcessFailedData{}
	var _ EventData = &WorkerStartupTimeoutData{}
	var _ EventData = &WorkerLostData{}
	var _ EventData = &VADSegmentData{}
	var _ EventData = &SessionEvictedData{}
}

func TestEvent_Creation(t *testing.T) {
	now := time.Now()
	event := &Event{
		Type:       EventPipelineStarted,
		Timestamp:  now,
		PipelineID: "pipeline-1",
		SessionID:  "session-1",
		Data: &PipelineStartedData{
			NodeCount: 3,
		},
	}

	if event.Type != EventPipelineStarted {
		t.Errorf("expected EventPipelineStarted, got %v", event.Type)
	}
	data, ok := event.Data.(*PipelineStartedData)
	if !ok {
		t.Fatal("expected PipelineStartedData")
	}
	if data.NodeCount != 3 {
		t.Errorf("expected NodeCount 3, got %d", data.NodeCount)
	}
}

func TestNodeReadyData(t *testing.T) {
	event := &Event{
		Type:       EventNodeReady,
		Timestamp:  time.Now(),
		PipelineID: "pipeline-1",
		NodeID:     "asr-whisper",
		Data:       &NodeReadyData{ExecutionMode: "out_of_process"},
	}
	data := event.Data.(*NodeReadyData)
	if data.ExecutionMode != "out_of_process" {
		t.Errorf("expected out_of_process, got %s", data.ExecutionMode)
	}
}

func TestWorkerLostData(t *testing.T) {
	event := &Event{
		Type:       EventWorkerLost,
		Timestamp:  time.Now(),
		PipelineID: "pipeline-1",
		NodeID:     "asr-whisper",
		Data:       &WorkerLostData{Error: nil},
	}
	if _, ok := event.Data.(*WorkerLostData); !ok {
		t.Fatal("expected WorkerLostData")
	}
}
