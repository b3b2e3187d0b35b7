package node

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/logger"
	prommetrics "github.com/matbeedotcom/remotemedia-sdk-sub000/metrics/prometheus"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/statemanager"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/telemetry"
)

// Host owns one Node instance and drives its lifecycle: initialize,
// queue-during-init, process-loop, control-message dispatch, and
// cleanup (§4.4).
type Host struct {
	Node    Node
	Input   <-chan *runtimedata.Data
	Output  chan<- *runtimedata.Data
	Sessions *statemanager.Manager

	// OnReady is invoked once the queuing relay is confirmed running,
	// before the (possibly slow) Initialize call — the scheduler uses
	// this to send the edge's READY signal (§4.2, §9 open question).
	OnReady func()

	// ExecutionMode labels this Host's node_process_duration_seconds
	// metric series ("in_process" or "out_of_process"); empty defaults
	// to "in_process" since cmd/remotemedia-worker is the only caller
	// that runs a Host inside a spawned process.
	ExecutionMode string

	Stats Stats
	state stateBox

	log *slog.Logger
}

// NewHost constructs a Host for n, wired to the given edges.
func NewHost(n Node, input <-chan *runtimedata.Data, output chan<- *runtimedata.Data, sessions *statemanager.Manager) *Host {
	return &Host{
		Node:     n,
		Input:    input,
		Output:   output,
		Sessions: sessions,
		log:      logger.DefaultLogger.With("component", "node.Host", "node", n.Name()),
	}
}

// State returns the node's current lifecycle state, safe to read
// concurrently from the scheduler.
func (h *Host) State() State { return h.state.get() }

// Run drives the full lifecycle and blocks until the input edge closes,
// ctx is cancelled, or initialization fails. It always closes Output
// before returning, propagating the sentinel downstream (§8 property 3).
func (h *Host) Run(ctx context.Context) error {
	defer close(h.Output)

	h.state.set(StateInitializing)

	q := newItemQueue()
	started := make(chan struct{})
	relayDone := make(chan struct{})
	go h.relay(ctx, q, started, relayDone)
	<-started // queuing relay confirmed polling the input edge

	if h.OnReady != nil {
		h.OnReady()
	}

	// Forced shutdown: stop feeding the queue once ctx is cancelled so
	// the consumer loop below unblocks and proceeds to cleanup.
	go func() {
		select {
		case <-ctx.Done():
			q.closeQ()
		case <-relayDone:
		}
	}()

	initCtx := h.newContext(ctx, "")
	if err := h.Node.Initialize(initCtx); err != nil {
		h.state.set(StateError)
		h.log.Error("initialization failed", "error", err)
		return errors.Join(ErrInitializationFailed, err)
	}
	h.state.set(StateReady)

	if source, ok := h.Node.(SourceNode); ok && source.IsSource() {
		// A source node's process takes no input and drives emit itself
		// until it exhausts or ctx is cancelled (§6.3); it does not
		// consume the queuing relay's queue at all.
		h.state.set(StateProcessing)
		if err := h.Node.Process(initCtx, nil, h.emitWithCtx(ctx)); err != nil {
			h.log.Error("source process error", "error", err)
		}
		h.state.set(StateReady)
	} else {
		for {
			item, ok := q.pop()
			if !ok {
				break
			}
			h.dispatch(ctx, item)
		}
	}

	h.state.set(StateStopping)
	h.finish(ctx)
	h.state.set(StateStopped)
	return nil
}

// relay is the queue-during-init task (§4.4 "Queue-during-init"): it
// non-blockingly (from the edge's perspective) polls the input edge for
// the lifetime of the host and appends items to q in arrival order. It
// never stops running early, so there is no window in which an item can
// be dropped between "still initializing" and "steady state".
func (h *Host) relay(ctx context.Context, q *itemQueue, started chan<- struct{}, done chan<- struct{}) {
	close(started)
	defer close(done)
	for {
		select {
		case item, ok := <-h.Input:
			if !ok {
				q.closeQ()
				return
			}
			q.push(item)
		case <-ctx.Done():
			q.closeQ()
			return
		}
	}
}

func (h *Host) dispatch(ctx context.Context, item *runtimedata.Data) {
	if item.IsControl() {
		h.handleControl(h.newContext(ctx, item.SessionID), item.Control)
		return
	}

	h.state.set(StateProcessing)
	spanCtx, span := telemetry.Tracer(nil).Start(ctx, "node.Process")
	span.SetAttributes(attribute.String("node.name", h.Node.Name()), attribute.String("node.execution_mode", h.executionMode()))
	nctx := h.newContext(spanCtx, item.SessionID)
	start := time.Now()
	err := h.Node.Process(nctx, item, h.emitWithCtx(ctx))
	elapsed := time.Since(start)
	h.state.set(StateReady)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.End()
		h.Stats.recordFailure()
		prommetrics.RecordNodeProcess(h.Node.Name(), h.executionMode(), "error", elapsed.Seconds())
		critical := h.isCritical(err)
		perr := NewProcessError(h.Node.Name(), err, critical)
		h.log.Error("process error", "error", err, "critical", critical)
		if critical {
			// Pipeline-fatal: surfaced to the scheduler via the
			// returned error of a future poll; recorded here so
			// Stats/logs capture it even though Run's loop continues
			// per-item by default (§4.4 item 8).
			h.state.set(StateError)
			_ = perr
		}
		return
	}
	span.End()
	h.Stats.recordSuccess(elapsed)
	prommetrics.RecordNodeProcess(h.Node.Name(), h.executionMode(), "success", elapsed.Seconds())
}

func (h *Host) executionMode() string {
	if h.ExecutionMode == "" {
		return "in_process"
	}
	return h.ExecutionMode
}

func (h *Host) handleControl(ctx *Context, msg *runtimedata.ControlMessage) {
	if handler, ok := h.Node.(ControlMessageHandler); ok {
		if err := handler.ProcessControlMessage(ctx, msg, h.emitWithCtx(ctx)); err != nil {
			h.log.Warn("control message handler error", "type", msg.Type, "error", err)
		}
		return
	}

	switch msg.Type {
	case runtimedata.ControlFlushBuffer:
		if err := h.flush(ctx); err != nil {
			h.log.Warn("flush on FlushBuffer failed", "error", err)
		}
	case runtimedata.ControlCancelSpeculation, runtimedata.ControlBatchHint, runtimedata.ControlDeadlineWarning:
		// Advisory/no-op by default; a node opts in via
		// ControlMessageHandler to act on these (§4.4).
		h.log.Debug("advisory control message", "type", msg.Type)
	}
}

func (h *Host) flush(ctx *Context) error {
	flusher, ok := h.Node.(Flusher)
	if !ok {
		return nil
	}
	return flusher.Flush(ctx, h.emitWithCtx(ctx))
}

func (h *Host) finish(ctx context.Context) {
	fctx := h.newContext(ctx, "")
	if err := h.flush(fctx); err != nil {
		h.log.Warn("flush on shutdown failed", "error", err)
	}
	if err := h.Node.Cleanup(fctx); err != nil {
		h.log.Error("cleanup failed", "error", err)
	}
}

// emitWithCtx binds a blocking send to ctx so a full downstream edge
// propagates backpressure upstream (§5) while still unblocking promptly
// on forced shutdown.
func (h *Host) emitWithCtx(ctx context.Context) EmitFunc {
	return func(d *runtimedata.Data) error {
		select {
		case h.Output <- d:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Host) isCritical(err error) bool {
	if classifier, ok := h.Node.(CriticalClassifier); ok {
		return classifier.IsCritical(err)
	}
	return false
}

func (h *Host) newContext(ctx context.Context, sessionID string) *Context {
	var session *statemanager.Session
	if h.Sessions != nil {
		session = h.Sessions.GetOrCreate(sessionID)
	}
	return &Context{Context: ctx, SessionID: sessionID, Session: session}
}
