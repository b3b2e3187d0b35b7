package scheduler

import (
	"github.com/matbeedotcom/remotemedia-sdk-sub000/modelregistry"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/statemanager"
)

// ExecutionMode selects how a node is hosted (§4.5 item 2).
type ExecutionMode int

const (
	// InProcess runs the node's Host as a goroutine wired to in-memory
	// channel edges.
	InProcess ExecutionMode = iota
	// OutOfProcess runs the node in a separate OS process wired to IPC
	// rings (§4.2); the scheduler hands this node's Host edges backed by
	// an ipc.Transport rather than plain channels.
	OutOfProcess
)

// NodeSpec is one resolved graph node: a manifest-level declaration
// after node_type has been resolved to a live node.Node instance (§6.1,
// §6.3). The manifest package builds these; the scheduler only consumes
// them, so it stays decoupled from manifest parsing and the node
// registry.
type NodeSpec struct {
	ID            string
	Node          node.Node
	ExecutionMode ExecutionMode
	// Sessions is the per-node State Manager singleton (§4.7); nil
	// disables session-scoped state for this node.
	Sessions *statemanager.Manager

	// RemoteNodeType and RemoteParams are the manifest node_type/params
	// the worker process resolves against its own node registry when
	// ExecutionMode is OutOfProcess; unused for an in-process node,
	// whose already-constructed Node the Host runs directly.
	RemoteNodeType string
	RemoteParams   map[string]interface{}
}

// EdgeSpec is one directed connection between two node IDs (§6.1
// "connections").
type EdgeSpec struct {
	From, To string
	// QueueCapacity overrides the default bounded edge capacity (100,
	// §4.5 item 3) for this edge. Zero uses the default.
	QueueCapacity int
	// RateLimit, if positive, bounds this edge to at most RateLimit
	// items/sec (bursting up to RateBurst, default 1); the forwarder
	// blocks rather than drops, so a limited edge adds to, rather than
	// replaces, ordinary backpressure (§5).
	RateLimit float64
	RateBurst int
}

// Graph is a manifest-resolved pipeline topology, the scheduler's Build
// input.
type Graph struct {
	Nodes    []NodeSpec
	Edges    []EdgeSpec
	Registry *modelregistry.Registry
}

func (g *Graph) byID() (map[string]NodeSpec, error) {
	byID := make(map[string]NodeSpec, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, wrapf(ErrDuplicateNodeID, n.ID)
		}
		byID[n.ID] = n
	}
	return byID, nil
}

// validate checks §6.1's structural invariants: unique IDs, edges
// resolve, the graph is a DAG, it is weakly connected, and it has at
// least one source (zero in-edges) and one sink (zero out-edges).
func (g *Graph) validate() error {
	if len(g.Nodes) == 0 {
		return ErrNoNodes
	}
	byID, err := g.byID()
	if err != nil {
		return err
	}

	adj := make(map[string][]string, len(g.Nodes))
	indeg := make(map[string]int, len(g.Nodes))
	outdeg := make(map[string]int, len(g.Nodes))
	for id := range byID {
		adj[id] = nil
	}
	for _, e := range g.Edges {
		if _, ok := byID[e.From]; !ok {
			return wrapf(ErrNodeNotFound, e.From)
		}
		if _, ok := byID[e.To]; !ok {
			return wrapf(ErrNodeNotFound, e.To)
		}
		adj[e.From] = append(adj[e.From], e.To)
		indeg[e.To]++
		outdeg[e.From]++
	}

	if err := detectCycles(byID, adj); err != nil {
		return err
	}

	hasSource, hasSink := false, false
	for id := range byID {
		if indeg[id] == 0 {
			hasSource = true
		}
		if outdeg[id] == 0 {
			hasSink = true
		}
	}
	if !hasSource {
		return ErrNoSource
	}
	if !hasSink {
		return ErrNoSink
	}

	if len(g.Nodes) > 1 && !weaklyConnected(byID, g.Edges) {
		return ErrNotConnected
	}
	return nil
}

// detectCycles is DFS-based cycle detection over the directed graph,
// same algorithm as the pipeline builder's cycleDetector, generalized
// to operate on a plain adjacency map instead of *Stage values.
func detectCycles(byID map[string]NodeSpec, adj map[string][]string) error {
	visited := make(map[string]bool, len(byID))
	recStack := make(map[string]bool, len(byID))

	var dfs func(n string) bool
	dfs = func(n string) bool {
		visited[n] = true
		recStack[n] = true
		for _, next := range adj[n] {
			if recStack[next] {
				return true
			}
			if !visited[next] && dfs(next) {
				return true
			}
		}
		recStack[n] = false
		return false
	}

	for id := range byID {
		if !visited[id] && dfs(id) {
			return ErrCyclicGraph
		}
	}
	return nil
}

// weaklyConnected treats edges as undirected and checks every node is
// reachable from an arbitrary start node — a DAG with ≥1 source/sink can
// still be two disjoint chains, which is an unreachable-sink defect by
// another name (§6.1 "graph is a DAG and connected").
func weaklyConnected(byID map[string]NodeSpec, edges []EdgeSpec) bool {
	undirected := make(map[string][]string, len(byID))
	for id := range byID {
		undirected[id] = nil
	}
	for _, e := range edges {
		undirected[e.From] = append(undirected[e.From], e.To)
		undirected[e.To] = append(undirected[e.To], e.From)
	}

	var start string
	for id := range byID {
		start = id
		break
	}
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range undirected[cur] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return len(seen) == len(byID)
}
