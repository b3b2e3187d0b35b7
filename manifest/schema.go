package manifest

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// manifestSchema is §6.1's JSON schema, embedded rather than fetched:
// unlike a published schema family shared across config types, the
// manifest shape is small, versioned in-band ("version": "v1"), and
// owned by this module, so there is nothing to fall back to locally.
const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "metadata", "nodes", "connections"],
  "properties": {
    "version": { "type": "string", "enum": ["v1"] },
    "metadata": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name":        { "type": "string", "minLength": 1 },
        "created_at":  { "type": "string" },
        "description": { "type": "string" }
      }
    },
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "node_type"],
        "properties": {
          "id":        { "type": "string", "minLength": 1 },
          "node_type": { "type": "string", "minLength": 1 },
          "params":    { "type": "object" },
          "capabilities": {
            "type": "object",
            "properties": {
              "gpu":       { "type": "boolean" },
              "memory_gb": { "type": "number" },
              "out_of_proc": { "type": "boolean" }
            }
          },
          "requires_runtime": { "type": "string" }
        }
      }
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "properties": {
          "from": { "type": "string", "minLength": 1 },
          "to":   { "type": "string", "minLength": 1 }
        }
      }
    }
  }
}`

// schemaCache holds the one compiled schema; a sync.Once avoids
// recompiling it on every LoadManifest call without the complexity of
// a keyed cache (there is only ever one schema here, not a family).
var (
	schemaOnce    sync.Once
	schemaCached  *gojsonschema.Schema
	schemaErr     error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		loader := gojsonschema.NewStringLoader(manifestSchema)
		schemaCached, schemaErr = gojsonschema.NewSchema(loader)
	})
	return schemaCached, schemaErr
}

// validateAgainstSchema accepts either JSON or YAML bytes (detected by
// decodeDocument's caller) already normalized to a generic document and
// checks it against manifestSchema, collecting every violation rather
// than stopping at the first.
func validateAgainstSchema(doc interface{}) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("manifest: compiling schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("manifest: validating document: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w:\n%s", ErrSchemaViolation, strings.Join(msgs, "\n"))
	}
	return nil
}

// decodeDocument parses raw manifest bytes as YAML (a superset of JSON,
// so both "version: v1\n..." and "{\"version\": \"v1\", ...}" files
// decode the same way) into a generic document for schema validation.
func decodeDocument(raw []byte) (interface{}, error) {
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("manifest: parsing document: %w", err)
	}
	return normalizeYAMLMaps(doc), nil
}

// normalizeYAMLMaps recursively converts map[string]interface{} produced
// by yaml.v3 (already string-keyed, unlike yaml.v2's map[interface{}]
// interface{}) into the shape gojsonschema and encoding/json both expect;
// kept as a no-op-safe pass so nested maps/slices are walked uniformly.
func normalizeYAMLMaps(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeYAMLMaps(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeYAMLMaps(val)
		}
		return out
	default:
		return v
	}
}

// canonicalize round-trips a decoded document through JSON, which
// yaml.Unmarshal also accepts (JSON is a YAML subset) — letting the
// final strict-typed decode into Manifest use a single code path
// regardless of whether the source file was JSON or YAML.
func canonicalize(doc interface{}) ([]byte, error) {
	return json.Marshal(doc)
}
