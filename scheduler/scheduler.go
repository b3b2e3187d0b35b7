// Package scheduler builds a node.Host per manifest node, wires edges
// per §4.2/§4.5, runs the pipeline to completion or forced shutdown,
// and escalates critical errors as PipelineFailedError.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/events"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/logger"
	prommetrics "github.com/matbeedotcom/remotemedia-sdk-sub000/metrics/prometheus"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/telemetry"
)

// Scheduler builds Pipelines from validated Graphs.
type Scheduler struct {
	cfg Config
	log *slog.Logger
}

// New constructs a Scheduler with cfg (zero value takes defaults).
func New(cfg Config) *Scheduler {
	return &Scheduler{
		cfg: cfg.withDefaults(),
		log: logger.DefaultLogger.With("component", "scheduler.Scheduler"),
	}
}

// hostEntry pairs one NodeSpec with its constructed Host and the edge
// channel feeding it.
type hostEntry struct {
	spec  NodeSpec
	host  *node.Host
	ready chan struct{} // closed once the host's queuing relay is confirmed running

	// input is the edge this node's Host or remoteRunner actually reads
	// from — the real inbound channel, or an already-closed stand-in for
	// a source node (§6.3) — captured at Build time since Run needs it
	// again for OutOfProcess nodes, which bypass node.Host entirely.
	input <-chan *runtimedata.Data
}

// Pipeline is one built, runnable instance of a Graph (§4.5 items 3-8).
type Pipeline struct {
	id    string // unique per Build call; names this run's IPC rings (§4.2)
	cfg   Config
	log   *slog.Logger
	nodes map[string]*hostEntry
	order []string // topological build order, for readability in logs

	edges    []EdgeSpec
	inputs   map[string]chan *runtimedata.Data
	outputsW map[string]chan *runtimedata.Data
	// limiters holds a *rate.Limiter per edge (keyed "from\x00to") for
	// every EdgeSpec with a positive RateLimit; edges without one are
	// simply absent from the map.
	limiters map[string]*rate.Limiter

	// incomingRemaining/closeInputOnce let a fan-in node's input channel
	// be closed exactly once, only after every one of its producing
	// edges has exhausted (§4.5 item 7 "source nodes exhaust -> emit
	// sentinel ... propagates sentinel"): closing it after the first
	// producer alone would truncate the others' still-arriving data.
	incomingRemaining map[string]*atomic.Int32
	closeInputOnce    map[string]*sync.Once

	outputs map[string]<-chan *runtimedata.Data // node ID -> its Host's Output, for the terminal sink(s)

	events *events.Emitter // nil when Config.Bus is unset

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// Build validates g (§6.1) and constructs a Host per node with channel
// edges sized per EdgeSpec.QueueCapacity or the scheduler default. It
// does not start any goroutines; call Run for that.
func (s *Scheduler) Build(g *Graph) (*Pipeline, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	byID, _ := g.byID()

	// One input channel per node, written to by upstream forwarders
	// (or left unused/closed immediately for a source node, §6.3).
	inputs := make(map[string]chan *runtimedata.Data, len(g.Nodes))
	outputs := make(map[string]chan *runtimedata.Data, len(g.Nodes))
	for id := range byID {
		capacity := s.cfg.DefaultEdgeCapacity
		inputs[id] = make(chan *runtimedata.Data, capacity)
		outputs[id] = make(chan *runtimedata.Data, capacity)
	}
	// Edge-specific capacity override: rebuild with the requested size.
	for _, e := range g.Edges {
		if e.QueueCapacity > 0 {
			inputs[e.To] = make(chan *runtimedata.Data, e.QueueCapacity)
		}
	}

	indeg := make(map[string]int, len(byID))
	for _, e := range g.Edges {
		indeg[e.To]++
	}

	p := &Pipeline{
		id:                uuid.NewString(),
		cfg:               s.cfg,
		log:               s.log,
		nodes:             make(map[string]*hostEntry, len(byID)),
		outputs:           make(map[string]<-chan *runtimedata.Data, len(byID)),
		done:              make(chan struct{}),
		incomingRemaining: make(map[string]*atomic.Int32, len(byID)),
		closeInputOnce:    make(map[string]*sync.Once, len(byID)),
	}
	for id, n := range indeg {
		if n == 0 {
			continue
		}
		counter := &atomic.Int32{}
		counter.Store(int32(n))
		p.incomingRemaining[id] = counter
		p.closeInputOnce[id] = &sync.Once{}
	}
	// NewEmitter tolerates a nil bus (Config.Bus unset): every emit call
	// becomes a no-op rather than requiring a nil check at every call site.
	p.events = events.NewEmitter(s.cfg.Bus, p.id)

	for id, spec := range byID {
		var in <-chan *runtimedata.Data
		if indeg[id] == 0 {
			// Source node: give it an already-closed input so its Host's
			// relay goroutine exits immediately; the node drives its own
			// output via the SourceNode path in node.Host.Run.
			closedCh := make(chan *runtimedata.Data)
			close(closedCh)
			in = closedCh
		} else {
			in = inputs[id]
		}

		h := node.NewHost(spec.Node, in, outputs[id], spec.Sessions)
		entry := &hostEntry{spec: spec, host: h, ready: make(chan struct{}), input: in}
		if spec.ExecutionMode == InProcess {
			ready, nodeID := entry.ready, id
			h.OnReady = func() {
				close(ready)
				p.events.NodeReady(nodeID, "in_process")
			}
		}

		p.nodes[id] = entry
		p.order = append(p.order, id)
		p.outputs[id] = outputs[id]
	}

	// Forwarders: for each edge, pump upstream's Output into downstream's
	// Input (§4.5 item 5). This is a plain goroutine started by Run, not
	// here, since it must observe ctx for cancellation.
	p.edges = g.Edges
	p.inputs = inputs
	p.outputsW = outputs
	p.limiters = make(map[string]*rate.Limiter)
	for _, e := range g.Edges {
		if e.RateLimit > 0 {
			burst := e.RateBurst
			if burst <= 0 {
				burst = 1
			}
			p.limiters[edgeKey(e.From, e.To)] = rate.NewLimiter(rate.Limit(e.RateLimit), burst)
		}
	}
	return p, nil
}

func edgeKey(from, to string) string { return from + "\x00" + to }

// Run starts every Host, waits for out-of-process READY handshakes
// (in-process nodes are considered ready as soon as their relay starts),
// forwards data across edges, and blocks until the pipeline reaches a
// clean terminal state, ctx is cancelled, or a critical error escalates
// to PipelineFailedError.
func (p *Pipeline) Run(ctx context.Context) (runErr error) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	defer cancel()
	defer close(p.done)

	runCtx, span := telemetry.Tracer(nil).Start(runCtx, "pipeline.Run",
		trace.WithAttributes(attribute.String("pipeline.id", p.id), attribute.Int("pipeline.node_count", len(p.nodes))))
	defer span.End()

	prommetrics.RecordPipelineStart()
	p.events.PipelineStarted(len(p.nodes))
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		status := "success"
		if runErr != nil {
			status = "error"
			span.SetStatus(codes.Error, runErr.Error())
			p.events.PipelineFailed(runErr, elapsed)
		} else {
			p.events.PipelineCompleted(elapsed)
		}
		prommetrics.RecordPipelineEnd(status, elapsed.Seconds())
	}()

	group, gctx := errgroup.WithContext(runCtx)

	for id, entry := range p.nodes {
		id, entry := id, entry
		if entry.spec.ExecutionMode == OutOfProcess {
			runner := newRemoteRunner(p.id, id, entry.spec, entry.input, p.outputsW[id], p.cfg, p.events)
			group.Go(func() error { return runner.run(gctx, entry.ready) })
			continue
		}
		group.Go(func() error {
			if err := entry.host.Run(gctx); err != nil {
				p.log.Error("node host exited with error", "node", id, "error", err)
				return &PipelineFailedError{FailingNode: id, Cause: err}
			}
			return nil
		})
	}

	// READY handshake (§4.2, §4.5 item 4): out-of-process nodes must
	// signal readiness within ReadyTimeout before any edge feeding them
	// is allowed to publish. In-process nodes use the same OnReady hook
	// so the wait is uniform; it just resolves near-instantly for them.
	if err := p.awaitReady(runCtx); err != nil {
		cancel()
		_ = group.Wait()
		return err
	}

	outgoing := make(map[string][]string)
	for _, e := range p.edges {
		outgoing[e.From] = append(outgoing[e.From], e.To)
	}
	for from, tos := range outgoing {
		from, tos := from, tos
		group.Go(func() error {
			return p.forward(gctx, from, tos)
		})
	}

	return group.Wait()
}

func (p *Pipeline) awaitReady(ctx context.Context) error {
	deadline := time.Now().Add(p.cfg.ReadyTimeout)
	for id, entry := range p.nodes {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = 0
		}
		pollCtx, cancel := context.WithTimeout(ctx, remaining)
		err := wait.PollUntilContextCancel(pollCtx, 10*time.Millisecond, true, func(context.Context) (bool, error) {
			select {
			case <-entry.ready:
				return true, nil
			default:
				return false, nil
			}
		})
		cancel()
		if err != nil {
			return &WorkerStartupTimeoutError{Node: id}
		}
	}
	return nil
}

// forward is the per-source-node forwarder (§4.5 item 5): it copies
// every item from one upstream node's Output to each of its downstream
// nodes' Input in order (a Branch fans the same item out to every
// target, §6.1's one-to-many connections), blocking — and so
// propagating backpressure, §5 — whichever downstream edge is slowest.
func (p *Pipeline) forward(ctx context.Context, from string, to []string) error {
	upstream := p.outputsW[from]
	for {
		select {
		case item, ok := <-upstream:
			if !ok {
				for _, t := range to {
					p.closeInputIfExhausted(t)
				}
				return nil // upstream sentinel: this source's work is done
			}
			for _, t := range to {
				if lim, ok := p.limiters[edgeKey(from, t)]; ok {
					if err := lim.Wait(ctx); err != nil {
						return err
					}
				}
				select {
				case p.inputs[t] <- item:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// closeInputIfExhausted decrements nodeID's remaining-producer count and
// closes its input edge once every incoming edge has sent its sentinel,
// propagating end-of-stream through a fan-in node exactly once.
func (p *Pipeline) closeInputIfExhausted(nodeID string) {
	counter, ok := p.incomingRemaining[nodeID]
	if !ok {
		return
	}
	if counter.Add(-1) == 0 {
		p.closeInputOnce[nodeID].Do(func() {
			close(p.inputs[nodeID])
		})
	}
}

// Stop requests a forced shutdown (§4.5 item 7): it cancels the run
// context so every Host finishes its current process() call, skips
// remaining input, and calls cleanup, then waits up to the configured
// grace period for Run to return. If the pipeline has not fully torn
// down in time, Stop returns a timeout error to the caller so it can
// escalate (the scheduler itself cannot force-kill in-process
// goroutines; out-of-process workers are killed by the
// ipc.WorkerLauncher's own grace-period logic).
func (p *Pipeline) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.cfg.StopGrace):
		return fmt.Errorf("scheduler: pipeline did not stop within grace period")
	}
}

// Outputs returns the Output edge of every sink node (out-degree zero),
// for the runner to read final results from.
func (p *Pipeline) Outputs(g *Graph) map[string]<-chan *runtimedata.Data {
	outdeg := make(map[string]int)
	for _, e := range g.Edges {
		outdeg[e.From]++
	}
	sinks := make(map[string]<-chan *runtimedata.Data)
	for id, entry := range p.nodes {
		if outdeg[id] == 0 {
			sinks[id] = p.outputs[entry.spec.ID]
		}
	}
	return sinks
}
