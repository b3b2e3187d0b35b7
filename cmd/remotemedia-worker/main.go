// Command remotemedia-worker is the out-of-process node entrypoint
// (§4.2, §4.5 item 2): the scheduler's ipc.Launch spawns this binary
// alongside its own, handing it three inherited file descriptors (input
// ring, output ring, control ring, in that fixed order) and the
// node_type/params to resolve via environment variables.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/ipc"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/logger"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/manifest"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
)

// Fixed ExtraFiles descriptor order a child inherits: 0/1/2 are its own
// stdio, so the first three passed descriptors land at 3, 4, 5.
const (
	fdInput   = 3
	fdOutput  = 4
	fdControl = 5
)

const heartbeatInterval = ipc.HealthCheckInterval / 3

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.DefaultLogger.With("component", "remotemedia-worker")

	nodeType := os.Getenv(ipc.WorkerEnvNodeType)
	edgeName := os.Getenv(ipc.WorkerEnvEdge)
	var params map[string]interface{}
	if raw := os.Getenv(ipc.WorkerEnvParams); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			log.Error("invalid worker params", "error", err)
			return 1
		}
	}

	n, err := manifest.DefaultRegistry.Resolve(nodeType, params)
	if err != nil {
		log.Error("resolving node_type", "node_type", nodeType, "error", err)
		return 1
	}

	transport, err := ipc.AttachWorkerTransport(edgeName,
		fdInput, fdOutput, fdControl)
	if err != nil {
		log.Error("attaching transport", "error", err)
		return 1
	}
	defer transport.Close()

	// Signal READY as soon as the rings are attached, before Initialize
	// runs — the host must not publish before this, and a slow-loading
	// node must not lose any input sent in the gap (§4.2, §9's "after
	// input subscriber attached, before model load").
	transport.Control().SignalReady()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go heartbeat(ctx, transport)

	in := make(chan *runtimedata.Data, 100)
	out := make(chan *runtimedata.Data, 100)
	go pumpIn(ctx, transport, in)
	go pumpOut(ctx, transport, out)

	host := node.NewHost(n, in, out, nil)
	host.ExecutionMode = "out_of_process"
	if err := host.Run(ctx); err != nil {
		log.Error("node host exited with error", "error", err)
		return 1
	}
	return 0
}

func heartbeat(ctx context.Context, t *ipc.Transport) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.Control().Heartbeat(now)
		}
	}
}

// pumpIn relays the host's published items into in until Receive fails
// (ctx cancellation is the ordinary case, a forced shutdown), closing
// in so node.Host's relay sees end-of-stream and proceeds to cleanup.
func pumpIn(ctx context.Context, t *ipc.Transport, in chan<- *runtimedata.Data) {
	defer close(in)
	for {
		d, err := t.Receive(ctx)
		if err != nil {
			return
		}
		select {
		case in <- d:
		case <-ctx.Done():
			return
		}
	}
}

// pumpOut relays the node's emitted items back over the transport until
// out closes (node.Host.Run always closes its Output on return).
func pumpOut(ctx context.Context, t *ipc.Transport, out <-chan *runtimedata.Data) {
	for {
		select {
		case d, ok := <-out:
			if !ok {
				return
			}
			if err := t.Send(ctx, d); err != nil {
				fmt.Fprintln(os.Stderr, "remotemedia-worker: send failed:", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
