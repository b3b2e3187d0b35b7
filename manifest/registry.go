package manifest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
)

// Constructor builds a live node.Node from one manifest node's params.
type Constructor func(params map[string]interface{}) (node.Node, error)

// NodeRegistry resolves node_type strings to Constructors (§6.3's
// "registered-name"). The zero value is empty and safe to use; most
// callers want the process-wide DefaultRegistry.
type NodeRegistry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewNodeRegistry returns an empty registry.
func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{ctors: make(map[string]Constructor)}
}

// Register adds or replaces the Constructor for nodeType.
func (r *NodeRegistry) Register(nodeType string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[nodeType] = ctor
}

// Resolve builds a node.Node for nodeType, or ErrUnknownNodeType.
func (r *NodeRegistry) Resolve(nodeType string, params map[string]interface{}) (node.Node, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[nodeType]
	r.mu.RUnlock()
	if !ok {
		return nil, wrapID(ErrUnknownNodeType, nodeType)
	}
	n, err := ctor(params)
	if err != nil {
		return nil, fmt.Errorf("manifest: constructing node_type %q: %w", nodeType, err)
	}
	return n, nil
}

// Types returns every registered node_type, sorted, for diagnostics.
func (r *NodeRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for t := range r.ctors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry is the process-wide registry used by LoadManifest
// when no explicit *NodeRegistry is supplied. Node-providing packages
// call Register on it from an init() the way the standard library's
// database/sql drivers register themselves.
var DefaultRegistry = NewNodeRegistry()
