package scheduler

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/events"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/ipc"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/logger"
	prommetrics "github.com/matbeedotcom/remotemedia-sdk-sub000/metrics/prometheus"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
)

// remoteRunner drives one OutOfProcess node (§4.5 item 2, §4.2): it
// launches a worker process over ipc.Launch, bridges the pipeline's
// plain channel edges to/from the worker's ipc.Transport, and watches
// the worker's liveness, surfacing a lost or hung worker as
// WorkerLostError the same way an in-process Host surfaces a critical
// process() error as PipelineFailedError.
type remoteRunner struct {
	pipelineID string
	id         string
	spec       NodeSpec
	input      <-chan *runtimedata.Data
	output     chan<- *runtimedata.Data
	cfg        Config
	events     *events.Emitter
	log        *slog.Logger
}

func newRemoteRunner(pipelineID, id string, spec NodeSpec, input <-chan *runtimedata.Data, output chan<- *runtimedata.Data, cfg Config, emitter *events.Emitter) *remoteRunner {
	return &remoteRunner{
		pipelineID: pipelineID,
		id:         id,
		spec:       spec,
		input:      input,
		output:     output,
		cfg:        cfg,
		events:     emitter,
		log:        logger.DefaultLogger.With("component", "scheduler.remoteRunner", "node", id),
	}
}

// run spawns the worker, blocks until its READY handshake completes or
// ReadyTimeout elapses (closing ready on success, mirroring
// node.Host.OnReady), then pumps data in both directions until ctx is
// cancelled, the worker exits, or its heartbeat goes stale.
func (r *remoteRunner) run(ctx context.Context, ready chan<- struct{}) error {
	defer close(r.output)

	w, err := ipc.Launch(ctx, r.pipelineID, r.id, ipc.WorkerSpec{
		Binary:   r.cfg.WorkerBinary,
		Args:     r.cfg.WorkerArgs,
		NodeType: r.spec.RemoteNodeType,
		Params:   r.spec.RemoteParams,
	})
	if err != nil {
		r.log.Error("failed to launch worker", "error", err)
		r.events.WorkerStartupTimeout(r.id)
		return &WorkerStartupTimeoutError{Node: r.id}
	}
	defer w.Close()

	readyCtx, cancelReady := context.WithTimeout(ctx, r.cfg.ReadyTimeout)
	waitErr := w.WaitReady(readyCtx)
	cancelReady()
	if waitErr != nil {
		_ = w.Stop(r.cfg.StopGrace)
		r.events.WorkerStartupTimeout(r.id)
		return &WorkerStartupTimeoutError{Node: r.id}
	}
	close(ready)
	r.events.NodeReady(r.id, "out_of_process")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, gctx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		err := r.pumpIn(gctx, w)
		if err == nil {
			// Upstream exhausted cleanly: wind the worker down and let
			// pumpOut/the heartbeat watcher unwind via cancel rather
			// than surfacing this as a failure.
			_ = w.Stop(r.cfg.StopGrace)
			cancel()
		}
		return err
	})
	group.Go(func() error { return r.pumpOut(gctx, w) })
	group.Go(func() error { return w.WatchHeartbeat(gctx) })

	if err := group.Wait(); err != nil && ctx.Err() == nil && err != context.Canceled && err != context.DeadlineExceeded {
		r.log.Error("worker lost", "error", err)
		prommetrics.RecordWorkerLost(r.id)
		r.events.WorkerLost(r.id, err)
		return &WorkerLostError{Node: r.id, Err: err}
	}
	return nil
}

// pumpIn forwards items from the pipeline's input edge to the worker's
// transport, returning nil (not an error) once the edge's sentinel
// closes it — the ordinary end-of-stream path, same as node.Host.relay.
func (r *remoteRunner) pumpIn(ctx context.Context, w *ipc.Worker) error {
	for {
		select {
		case item, ok := <-r.input:
			if !ok {
				return nil
			}
			if err := w.Transport.Send(ctx, item); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pumpOut forwards the worker's published results to the pipeline's
// output edge until Receive errors (ctx cancellation or a lost peer).
func (r *remoteRunner) pumpOut(ctx context.Context, w *ipc.Worker) error {
	for {
		d, err := w.Transport.Receive(ctx)
		if err != nil {
			return err
		}
		select {
		case r.output <- d:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
