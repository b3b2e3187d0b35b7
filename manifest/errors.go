package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaViolation wraps one or more §6.1 JSON-schema failures.
	ErrSchemaViolation = errors.New("manifest: schema violation")
	// ErrUnknownNodeType is returned when a node's node_type has no
	// registered constructor.
	ErrUnknownNodeType = errors.New("manifest: unknown node_type")
	// ErrCapabilityMismatch is returned when a node's advertised
	// node.Capabilities cannot satisfy its manifest declaration.
	ErrCapabilityMismatch = errors.New("manifest: capability mismatch")
	// ErrRuntimeVersion is returned when a node's requires_runtime
	// constraint rejects the running build's version.
	ErrRuntimeVersion = errors.New("manifest: runtime version constraint not satisfied")
)

func wrapID(sentinel error, id string) error {
	return fmt.Errorf("%w: %s", sentinel, id)
}
