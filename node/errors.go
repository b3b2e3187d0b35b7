package node

import (
	"errors"
	"fmt"
)

// Error taxonomy kinds from spec §7, realized as sentinel errors so
// callers can errors.Is/errors.As them out of a wrapped chain.
var (
	// ErrInitializationFailed wraps a node's Initialize error.
	ErrInitializationFailed = errors.New("node: initialization failed")

	// ErrInvalidData marks a RuntimeData envelope that failed
	// self-consistency at a receiver; the item is dropped.
	ErrInvalidData = errors.New("node: invalid data")

	// ErrBackpressureTimeout marks a send that blocked past a
	// configured bound (off by default).
	ErrBackpressureTimeout = errors.New("node: backpressure timeout")
)

// ProcessError wraps an error raised from a node's Process call,
// grounded on the teacher's StageError wrapper. Default handling logs
// it and increments messages_failed; it escalates to pipeline-fatal
// only when the node's CriticalClassifier (or the host default) says
// so.
type ProcessError struct {
	NodeName string
	Err      error
	Critical bool
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("node %q: process error: %v", e.NodeName, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// NewProcessError wraps err as a ProcessError for the given node.
func NewProcessError(nodeName string, err error, critical bool) *ProcessError {
	return &ProcessError{NodeName: nodeName, Err: err, Critical: critical}
}
