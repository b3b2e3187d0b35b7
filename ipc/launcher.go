package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/logger"
)

// Environment variables Launch uses to convey the worker's identity
// across exec, since argv quoting is unreliable for arbitrary params.
const (
	WorkerEnvNodeType = "REMOTEMEDIA_WORKER_NODE_TYPE"
	WorkerEnvParams   = "REMOTEMEDIA_WORKER_PARAMS_JSON"
	WorkerEnvEdge     = "REMOTEMEDIA_WORKER_EDGE_NAME"
)

// WorkerSpec is what the launcher needs to exec a node's worker
// process: the remotemedia-worker binary to run (see
// cmd/remotemedia-worker) and the node_type/params it resolves against
// the manifest node registry on the other side.
type WorkerSpec struct {
	Binary   string
	Args     []string
	NodeType string
	Params   map[string]interface{}
}

// Worker is one spawned out-of-process node: its Transport, its OS
// process handle, and the bookkeeping the scheduler needs to detect
// WorkerLost (§4.2, §7).
type Worker struct {
	Transport *Transport

	cmd *exec.Cmd
	log *slog.Logger

	mu       sync.Mutex
	exitErr  error
	exited   bool
	exitedCh chan struct{}
}

// Launch spawns spec.Binary with the three ring descriptors attached
// via ExtraFiles (positionally fd 3,4,5 in the child — the same
// fd-passing idiom process-isolated media engines use for their
// control/payload channels) and the node_type/params conveyed by
// environment variables rather than argv, so they survive arbitrary
// shell quoting. It does not wait for READY; call WaitReady for that.
func Launch(ctx context.Context, sessionID, nodeID string, spec WorkerSpec) (*Worker, error) {
	t, err := NewHostTransport(sessionID, nodeID)
	if err != nil {
		return nil, err
	}

	paramsJSON, err := json.Marshal(spec.Params)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("ipc: encoding worker params: %w", err)
	}

	fds := t.FDs()
	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...)
	cmd.ExtraFiles = []*os.File{
		os.NewFile(uintptr(fds[0]), "remotemedia-input"),
		os.NewFile(uintptr(fds[1]), "remotemedia-output"),
		os.NewFile(uintptr(fds[2]), "remotemedia-control"),
	}
	cmd.Env = append(os.Environ(),
		WorkerEnvNodeType+"="+spec.NodeType,
		WorkerEnvParams+"="+string(paramsJSON),
		WorkerEnvEdge+"="+t.Name,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Close()
		return nil, fmt.Errorf("ipc: starting worker: %w", err)
	}

	w := &Worker{
		Transport: t,
		cmd:       cmd,
		log:       logger.DefaultLogger.With("component", "ipc.Worker", "node", nodeID, "pid", cmd.Process.Pid),
		exitedCh:  make(chan struct{}),
	}
	go w.reap()
	return w, nil
}

// reap waits for the child and records its exit, the host-side half of
// §4.2's "the host detects this by a next-send error or a health-check
// gap ... and surfaces WorkerLost to the scheduler".
func (w *Worker) reap() {
	err := w.cmd.Wait()
	w.mu.Lock()
	w.exited = true
	if err != nil {
		w.exitErr = fmt.Errorf("%w: %v", ErrWorkerLost, err)
	} else {
		w.exitErr = ErrWorkerLost
	}
	w.mu.Unlock()
	close(w.exitedCh)
}

// WaitReady blocks until the worker signals READY on its control ring
// or ctx is cancelled (the scheduler wraps ctx with ReadyTimeout,
// §4.5 item 4, §7 WorkerStartupTimeout).
func (w *Worker) WaitReady(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- w.Transport.Control().WaitReady(ctx) }()
	select {
	case err := <-done:
		return err
	case <-w.exitedCh:
		return w.Err()
	}
}

// Err returns the recorded exit error, or nil if the worker is still
// running.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exitErr
}

// Exited reports whether the worker process has terminated.
func (w *Worker) Exited() <-chan struct{} { return w.exitedCh }

// WatchHeartbeat polls the control ring's heartbeat and returns
// ErrWorkerLost if it goes stale for longer than HealthCheckInterval
// without the process itself having exited (a hung-but-alive worker,
// the other half of §4.2's WorkerLost detection). It runs until ctx is
// cancelled or a failure is detected.
func (w *Worker) WatchHeartbeat(ctx context.Context) error {
	ticker := time.NewTicker(HealthCheckInterval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.exitedCh:
			return w.Err()
		case <-ticker.C:
			if stale := w.Transport.Control().StaleSince(time.Now()); stale > HealthCheckInterval {
				w.log.Error("worker heartbeat stale, declaring lost", "stale_for", stale)
				return ErrWorkerLost
			}
		}
	}
}

// Stop asks the worker to exit gracefully (SIGTERM) and escalates to
// SIGKILL if it has not exited within grace.
func (w *Worker) Stop(grace time.Duration) error {
	w.mu.Lock()
	exited := w.exited
	w.mu.Unlock()
	if exited {
		return nil
	}
	_ = w.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-w.exitedCh:
		return nil
	case <-time.After(grace):
		return w.cmd.Process.Kill()
	}
}

// Close releases the host's side of the transport. The worker process
// must already have exited or be in the process of exiting.
func (w *Worker) Close() error {
	return w.Transport.Close()
}
