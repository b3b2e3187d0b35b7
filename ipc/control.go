package ipc

import (
	"context"
	"sync/atomic"
	"time"
	"unsafe"
)

// ControlRing is the per-edge-pair control channel named
// "control/{session_id}_{node_id}" (§4.2): it carries only the
// startup READY signal and a periodic liveness heartbeat, never
// RuntimeData — control messages that are part of the data stream
// (CancelSpeculation etc.) travel as ordinary ControlMessage-kind
// frames on the data rings themselves (§3.1, §4.1).
type ControlRing struct {
	region *region
}

const (
	controlOffReady     = 0
	controlOffHeartbeat = 8
	controlSize         = 64

	// readySignaled / readyUnset are the values stored at
	// controlOffReady; distinct from 0/1 booleans only for readability.
	readyUnset     = 0
	readySignaled  = 1
)

func newControlRing() (*ControlRing, error) {
	reg, err := newRegion(controlSize)
	if err != nil {
		return nil, err
	}
	return &ControlRing{region: reg}, nil
}

func openControlRing(fd int) (*ControlRing, error) {
	reg, err := openRegion(fd)
	if err != nil {
		return nil, err
	}
	return &ControlRing{region: reg}, nil
}

func (c *ControlRing) ptr64(off int) *uint64 {
	return (*uint64)(unsafe.Pointer(&c.region.data[off]))
}
func (c *ControlRing) ptr32(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&c.region.data[off]))
}

// SignalReady is called by the worker once it has attached its
// subscriber to the input ring and its publisher to the output ring
// (§4.2's startup handshake). The host MUST NOT publish to the input
// ring until WaitReady observes this.
func (c *ControlRing) SignalReady() {
	atomic.StoreUint32(c.ptr32(controlOffReady), readySignaled)
}

// IsReady reports whether SignalReady has been observed.
func (c *ControlRing) IsReady() bool {
	return atomic.LoadUint32(c.ptr32(controlOffReady)) == readySignaled
}

// WaitReady polls (§5's sanctioned short-sleep poll, not a futex) for
// IsReady, returning ctx.Err() if ctx is cancelled or times out first.
func (c *ControlRing) WaitReady(ctx context.Context) error {
	backoff := time.Microsecond
	for !c.IsReady() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Millisecond {
			backoff *= 2
		}
	}
	return nil
}

// Heartbeat records the current time as a liveness pulse; the worker
// side calls this periodically, the host side checks StaleSince
// against it (§4.2 "health-check gap, default 5s").
func (c *ControlRing) Heartbeat(now time.Time) {
	atomic.StoreUint64(c.ptr64(controlOffHeartbeat), uint64(now.UnixNano()))
}

// StaleSince reports how long it has been since the last Heartbeat.
func (c *ControlRing) StaleSince(now time.Time) time.Duration {
	last := atomic.LoadUint64(c.ptr64(controlOffHeartbeat))
	if last == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, int64(last)))
}

func (c *ControlRing) Close() error { return c.region.close() }

func (c *ControlRing) FD() int { return c.region.fd }
