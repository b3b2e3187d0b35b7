// Package node implements the Node Host: the per-node lifecycle manager
// described in spec §4.4 (initialize → process-loop → cleanup), its
// queue-during-init guarantee, and its control-message dispatch.
package node

import (
	"context"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/statemanager"
)

// EmitFunc publishes one output envelope downstream. A node's Process
// may call it zero times (filter), once (single output), or repeatedly
// (streaming node) per item.
type EmitFunc func(*runtimedata.Data) error

// Node is the seam to node authors (§6.3). initialize/cleanup are async
// and may be slow; process is called once per input item.
type Node interface {
	Name() string
	Initialize(ctx *Context) error
	Process(ctx *Context, item *runtimedata.Data, emit EmitFunc) error
	Cleanup(ctx *Context) error
}

// ControlMessageHandler lets a node override default control-message
// handling (§4.4). A node that does not implement it gets the host's
// default behavior.
type ControlMessageHandler interface {
	ProcessControlMessage(ctx *Context, msg *runtimedata.ControlMessage, emit EmitFunc) error
}

// Flusher drains internal buffers on end-of-stream or on an explicit
// FlushBuffer control message.
type Flusher interface {
	Flush(ctx *Context, emit EmitFunc) error
}

// CriticalClassifier lets a node override which process() errors are
// pipeline-fatal (§4.4, §7 NodeProcessError). The default classifier
// treats no error as critical.
type CriticalClassifier interface {
	IsCritical(err error) bool
}

// SourceNode marks a node with zero input edges; its process() takes no
// input and instead drives emit from Initialize or a dedicated Run loop.
type SourceNode interface {
	IsSource() bool
}

// SinkNode marks a node with zero output edges.
type SinkNode interface {
	IsSink() bool
}

// StreamingNode marks a node whose Process may call emit more than once
// per input item.
type StreamingNode interface {
	IsStreaming() bool
}

// CapabilitiesProvider advertises resource requirements matched against
// a manifest node's declared capabilities at build time (§6.1).
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

// Capabilities is a node's advertised resource requirement, matched
// against a manifest node's declared capabilities (§6.1 "capabilities").
type Capabilities struct {
	GPU       bool
	MemoryGB  float64
	OutOfProc bool
}

// Context is the scoped object a node's lifecycle methods receive in
// place of an ambient mutable field (§9 "Per-session state tied to
// mutable node fields"): it composes the ambient context.Context with
// the node's per-session state, owned by the NodeHost, not the node.
type Context struct {
	context.Context
	SessionID string
	Session   *statemanager.Session
}

// WithSession returns a copy of c scoped to a different session.
func (c *Context) WithSession(sessionID string, session *statemanager.Session) *Context {
	return &Context{Context: c.Context, SessionID: sessionID, Session: session}
}
