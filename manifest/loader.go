package manifest

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/logger"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/scheduler"
)

// RuntimeVersion is this build's manifest-compatibility version,
// checked against a node's requires_runtime constraint (§6.1). It is
// deliberately separate from version.GetVersion, which reports the VCS
// build identity rather than a semver compatibility line.
var RuntimeVersion = semver.MustParse("1.0.0")

// LoadManifest reads path (JSON or YAML — §6.1 specifies JSON but the
// loader accepts YAML too since it is a strict JSON superset, matching
// how the rest of this runtime's configuration is authored), validates
// it against the §6.1 schema, and decodes it into a Manifest.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	return ParseManifest(raw)
}

// ParseManifest validates and decodes raw manifest bytes.
func ParseManifest(raw []byte) (*Manifest, error) {
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}
	if err := validateAgainstSchema(doc); err != nil {
		return nil, err
	}

	canonical, err := canonicalize(doc)
	if err != nil {
		return nil, fmt.Errorf("manifest: re-encoding document: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(canonical, &m); err != nil {
		return nil, fmt.Errorf("manifest: decoding document: %w", err)
	}
	return &m, nil
}

// Resolve builds a scheduler.Graph from m, resolving every node's
// node_type against registry (DefaultRegistry if nil), checking each
// node's requires_runtime constraint and declared capabilities. DAG
// shape (unique IDs, resolvable edges, connectivity, source/sink) is
// left to scheduler.Graph's own validate — this only concerns itself
// with node_type resolution and capability negotiation, which the
// scheduler knows nothing about.
func Resolve(m *Manifest, registry *NodeRegistry) (*scheduler.Graph, error) {
	if registry == nil {
		registry = DefaultRegistry
	}
	log := logger.DefaultLogger.With("component", "manifest.Resolve")

	g := &scheduler.Graph{
		Nodes: make([]scheduler.NodeSpec, 0, len(m.Nodes)),
		Edges: make([]scheduler.EdgeSpec, 0, len(m.Connections)),
	}

	for _, mn := range m.Nodes {
		if err := checkRuntimeVersion(mn); err != nil {
			return nil, err
		}

		n, err := registry.Resolve(mn.NodeType, mn.Params)
		if err != nil {
			return nil, err
		}

		mode := scheduler.InProcess
		if mn.Capabilities != nil {
			if err := checkCapabilities(n, *mn.Capabilities); err != nil {
				return nil, wrapID(err, mn.ID)
			}
			if mn.Capabilities.OutOfProc {
				mode = scheduler.OutOfProcess
			}
		}

		log.Debug("resolved manifest node", "id", mn.ID, "node_type", mn.NodeType, "mode", mode)
		g.Nodes = append(g.Nodes, scheduler.NodeSpec{
			ID:             mn.ID,
			Node:           n,
			ExecutionMode:  mode,
			RemoteNodeType: mn.NodeType,
			RemoteParams:   mn.Params,
		})
	}

	for _, c := range m.Connections {
		g.Edges = append(g.Edges, scheduler.EdgeSpec{From: c.From, To: c.To})
	}

	return g, nil
}

// checkRuntimeVersion rejects a node whose requires_runtime constraint
// (a semver constraint, e.g. ">= 1.0.0, < 2.0.0") the running
// RuntimeVersion does not satisfy. An empty constraint always passes.
func checkRuntimeVersion(mn Node) error {
	if mn.RequiresRuntime == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(mn.RequiresRuntime)
	if err != nil {
		return fmt.Errorf("manifest: node %q requires_runtime %q: %w", mn.ID, mn.RequiresRuntime, err)
	}
	if !constraint.Check(RuntimeVersion) {
		return wrapID(fmt.Errorf("%w: node %q needs %q, runtime is %s", ErrRuntimeVersion, mn.ID, mn.RequiresRuntime, RuntimeVersion), mn.ID)
	}
	return nil
}

// checkCapabilities compares a manifest node's declared requirement
// against what the constructed node.Node actually advertises, if it
// implements node.CapabilitiesProvider. A node that advertises nothing
// is assumed to satisfy any declared requirement (it opts out of
// negotiation, not fails it).
func checkCapabilities(n node.Node, want Capabilities) error {
	provider, ok := n.(node.CapabilitiesProvider)
	if !ok {
		return nil
	}
	have := provider.Capabilities()
	if want.GPU && !have.GPU {
		return fmt.Errorf("%w: requires gpu, node does not advertise it", ErrCapabilityMismatch)
	}
	if want.MemoryGB > 0 && have.MemoryGB > 0 && have.MemoryGB < want.MemoryGB {
		return fmt.Errorf("%w: requires %.1f GB, node advertises %.1f GB", ErrCapabilityMismatch, want.MemoryGB, have.MemoryGB)
	}
	if want.OutOfProc && !have.OutOfProc {
		return fmt.Errorf("%w: requires out-of-process hosting, node does not support it", ErrCapabilityMismatch)
	}
	return nil
}
