package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
)

type stubNode struct {
	name string
	caps *node.Capabilities
}

func (s *stubNode) Name() string                      { return s.name }
func (s *stubNode) Initialize(ctx *node.Context) error { return nil }
func (s *stubNode) Cleanup(ctx *node.Context) error    { return nil }
func (s *stubNode) Process(ctx *node.Context, item *runtimedata.Data, emit node.EmitFunc) error {
	return nil
}
func (s *stubNode) Capabilities() node.Capabilities {
	if s.caps == nil {
		return node.Capabilities{}
	}
	return *s.caps
}

func testRegistry() *NodeRegistry {
	r := NewNodeRegistry()
	r.Register("stub.passthrough", func(params map[string]interface{}) (node.Node, error) {
		return &stubNode{name: "passthrough"}, nil
	})
	r.Register("stub.gpu", func(params map[string]interface{}) (node.Node, error) {
		return &stubNode{name: "gpu", caps: &node.Capabilities{GPU: true, MemoryGB: 8}}, nil
	})
	return r
}

const validManifestYAML = `
version: v1
metadata:
  name: smoke-test
  created_at: 2026-01-01T00:00:00Z
nodes:
  - id: src
    node_type: stub.passthrough
  - id: sink
    node_type: stub.passthrough
connections:
  - from: src
    to: sink
`

func TestParseManifest_ValidDocument(t *testing.T) {
	m, err := ParseManifest([]byte(validManifestYAML))
	require.NoError(t, err)
	assert.Equal(t, "v1", m.Version)
	assert.Equal(t, "smoke-test", m.Metadata.Name)
	assert.Len(t, m.Nodes, 2)
	assert.Len(t, m.Connections, 1)
}

func TestParseManifest_RejectsMissingRequiredField(t *testing.T) {
	_, err := ParseManifest([]byte(`
version: v1
metadata:
  name: missing-nodes
nodes: []
connections: []
`))
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestParseManifest_RejectsWrongVersion(t *testing.T) {
	_, err := ParseManifest([]byte(`
version: v2
metadata:
  name: x
nodes:
  - id: a
    node_type: stub.passthrough
connections: []
`))
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestResolve_BuildsGraph(t *testing.T) {
	m, err := ParseManifest([]byte(validManifestYAML))
	require.NoError(t, err)

	g, err := Resolve(m, testRegistry())
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)
	assert.Equal(t, "src", g.Edges[0].From)
	assert.Equal(t, "sink", g.Edges[0].To)
}

func TestResolve_UnknownNodeType(t *testing.T) {
	m, err := ParseManifest([]byte(`
version: v1
metadata:
  name: x
nodes:
  - id: a
    node_type: does.not.exist
connections: []
`))
	require.NoError(t, err)

	_, err = Resolve(m, testRegistry())
	assert.ErrorIs(t, err, ErrUnknownNodeType)
}

func TestResolve_CapabilityMismatch(t *testing.T) {
	m, err := ParseManifest([]byte(`
version: v1
metadata:
  name: x
nodes:
  - id: a
    node_type: stub.passthrough
    capabilities:
      gpu: true
connections: []
`))
	require.NoError(t, err)

	_, err = Resolve(m, testRegistry())
	assert.ErrorIs(t, err, ErrCapabilityMismatch)
}

func TestResolve_CapabilitySatisfied(t *testing.T) {
	m, err := ParseManifest([]byte(`
version: v1
metadata:
  name: x
nodes:
  - id: a
    node_type: stub.gpu
    capabilities:
      gpu: true
      memory_gb: 4
connections: []
`))
	require.NoError(t, err)

	g, err := Resolve(m, testRegistry())
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 1)
}

func TestResolve_RuntimeVersionConstraintRejected(t *testing.T) {
	m, err := ParseManifest([]byte(`
version: v1
metadata:
  name: x
nodes:
  - id: a
    node_type: stub.passthrough
    requires_runtime: ">= 99.0.0"
connections: []
`))
	require.NoError(t, err)

	_, err = Resolve(m, testRegistry())
	assert.ErrorIs(t, err, ErrRuntimeVersion)
}
