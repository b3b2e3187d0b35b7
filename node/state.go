package node

import "sync/atomic"

// State is a node's lifecycle state (§3.3):
//
//	Idle -> Initializing -> Ready -> Processing -> Ready -> ... -> Stopping -> Stopped
//
// with Error reachable from any state.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateReady
	StateProcessing
	StateStopping
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// stateBox is an atomically-read/written State, reported concurrently to
// the scheduler while the host's own goroutine drives transitions.
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) set(s State)  { b.v.Store(int32(s)) }
func (b *stateBox) get() State   { return State(b.v.Load()) }
