package ipc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
)

// ErrWorkerLost is surfaced when the health-check gap exceeds
// HealthCheckInterval or a send/receive observes the peer gone (§4.2,
// §7 WorkerLost).
var ErrWorkerLost = errors.New("ipc: worker lost")

// HealthCheckInterval is the default staleness threshold before a
// transport declares its peer lost (§4.2 "health-check gap, default
// 5 s").
const HealthCheckInterval = 5 * time.Second

// Transport is one edge-pair's full IPC surface (§4.2): an input ring
// and output ring named "{session_id}_{node_id}_input"/"_output", plus
// the control ring carrying the READY handshake and heartbeat.
type Transport struct {
	Name string

	// send is this side's producer ring, recv its consumer ring: the
	// host's send is the input ring / recv is the output ring; the
	// worker's send is the output ring / recv is the input ring. Naming
	// the fields by role rather than by ring keeps Send/Receive
	// side-agnostic instead of branching on isHost at every call.
	send    *Ring
	recv    *Ring
	control *ControlRing
}

// edgeName builds the §4.2 service-pair name for one session/node.
func edgeName(sessionID, nodeID string) string {
	return fmt.Sprintf("%s_%s", sessionID, nodeID)
}

// NewHostTransport creates both data rings and the control ring for
// one node, to be handed to WorkerLauncher so their file descriptors
// travel to the spawned process via ExtraFiles. The host publishes to
// input and receives from output.
func NewHostTransport(sessionID, nodeID string) (*Transport, error) {
	in, err := newRing(DefaultCapacity, DefaultSlotSize, true) // host produces into input
	if err != nil {
		return nil, fmt.Errorf("ipc: creating input ring: %w", err)
	}
	out, err := newRing(DefaultCapacity, DefaultSlotSize, false) // worker produces into output
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("ipc: creating output ring: %w", err)
	}
	ctrl, err := newControlRing()
	if err != nil {
		in.Close()
		out.Close()
		return nil, fmt.Errorf("ipc: creating control ring: %w", err)
	}
	return &Transport{
		Name:    edgeName(sessionID, nodeID),
		send:    in,
		recv:    out,
		control: ctrl,
	}, nil
}

// AttachWorkerTransport opens a worker-side Transport on the three fds
// inherited via ExtraFiles (input, output, control, in that order —
// see WorkerLauncher). The worker publishes to output and receives
// from input, the mirror image of the host.
func AttachWorkerTransport(name string, inputFD, outputFD, controlFD int) (*Transport, error) {
	in, err := openConsumerRing(inputFD)
	if err != nil {
		return nil, fmt.Errorf("ipc: attaching input ring: %w", err)
	}
	out, err := openProducerRing(outputFD)
	if err != nil {
		return nil, fmt.Errorf("ipc: attaching output ring: %w", err)
	}
	ctrl, err := openControlRing(controlFD)
	if err != nil {
		return nil, fmt.Errorf("ipc: attaching control ring: %w", err)
	}
	return &Transport{Name: name, send: out, recv: in, control: ctrl}, nil
}

// FDs returns this (host-side) transport's descriptors in the fixed
// order AttachWorkerTransport expects: input ring, output ring,
// control ring. Only ever called on the host's Transport, where send
// is the input ring and recv is the output ring.
func (t *Transport) FDs() [3]int {
	return [3]int{t.send.FD(), t.recv.FD(), t.control.FD()}
}

// Control exposes the ready/heartbeat ring directly, for the launcher
// (host side, WaitReady) and the worker runner (worker side,
// SignalReady/Heartbeat).
func (t *Transport) Control() *ControlRing { return t.control }

// Send publishes one RuntimeData envelope (§4.1 framing) to this
// transport's outgoing ring, blocking (backpressure, §5) if the ring
// is full or the peer hasn't freed slots yet.
func (t *Transport) Send(ctx context.Context, d *runtimedata.Data) error {
	frame, err := runtimedata.Encode(d)
	if err != nil {
		return err
	}
	slot, err := t.send.LoanSlot(ctx, len(frame))
	if err != nil {
		return err
	}
	n := copy(slot.Bytes(), frame)
	slot.Commit(n)
	return nil
}

// Receive polls for the next RuntimeData envelope, blocking
// (poll-with-backoff, §5) until one arrives, ctx is cancelled, or the
// peer is declared lost via its heartbeat.
func (t *Transport) Receive(ctx context.Context) (*runtimedata.Data, error) {
	backoff := time.Microsecond
	for {
		rec, ok, err := t.recv.Poll()
		if err != nil {
			return nil, err
		}
		if ok {
			d, err := runtimedata.Decode(rec.Data)
			rec.Release()
			return d, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < time.Millisecond {
			backoff *= 2
		}
	}
}

// Close releases this side's view of all three rings. Each side owns
// and closes its own descriptors independently (§4.2's orphaned-rings
// failure mode is exactly what happens when only one side does).
func (t *Transport) Close() error {
	errs := []error{t.send.Close(), t.recv.Close(), t.control.Close()}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
