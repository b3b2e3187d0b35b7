// Package manifest loads and validates pipeline manifests (§6.1),
// resolves each node's node_type against a registry of constructors,
// and produces a scheduler.Graph ready to Build.
package manifest

import "time"

// Manifest is the decoded, schema-valid form of a §6.1 document.
type Manifest struct {
	Version     string            `yaml:"version" json:"version"`
	Metadata    Metadata          `yaml:"metadata" json:"metadata"`
	Nodes       []Node            `yaml:"nodes" json:"nodes"`
	Connections []Connection      `yaml:"connections" json:"connections"`
}

// Metadata is the manifest's descriptive header.
type Metadata struct {
	Name        string    `yaml:"name" json:"name"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// Node is one manifest-declared pipeline node before node_type
// resolution.
type Node struct {
	ID               string                 `yaml:"id" json:"id"`
	NodeType         string                 `yaml:"node_type" json:"node_type"`
	Params           map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
	Capabilities     *Capabilities          `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	RequiresRuntime  string                 `yaml:"requires_runtime,omitempty" json:"requires_runtime,omitempty"`
}

// Capabilities is a manifest node's declared resource requirement
// (§6.1 "capabilities"), checked against the constructed node.Node's
// own node.Capabilities if it implements CapabilitiesProvider.
type Capabilities struct {
	GPU        bool    `yaml:"gpu,omitempty" json:"gpu,omitempty"`
	MemoryGB   float64 `yaml:"memory_gb,omitempty" json:"memory_gb,omitempty"`
	OutOfProc  bool    `yaml:"out_of_proc,omitempty" json:"out_of_proc,omitempty"`
}

// Connection is one directed edge between two node IDs.
type Connection struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}
