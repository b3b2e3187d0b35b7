// Package router implements a JMESPath-predicate node type: an
// edge-insertable filter that forwards an item only when a declarative
// query matches its JSON projection, instead of the hand-written Go
// predicate functions a content router would otherwise need per rule.
package router

import (
	"fmt"

	"github.com/jmespath/go-jmespath"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
)

// Router forwards an item when Expression, evaluated against a JSON
// projection of the item, is truthy (JMESPath's own truthiness: not
// null, false, "", [], or {}). Non-matching items are dropped.
type Router struct {
	name       string
	expression string
	query      *jmespath.JMESPath
}

// New compiles expression once at construction so a malformed manifest
// node_type param fails pipeline build rather than every Process call.
func New(name, expression string) (*Router, error) {
	query, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("router: compile %q: %w", expression, err)
	}
	return &Router{name: name, expression: expression, query: query}, nil
}

func (r *Router) Name() string { return r.name }

func (r *Router) Initialize(ctx *node.Context) error { return nil }
func (r *Router) Cleanup(ctx *node.Context) error    { return nil }

// Process projects item to a plain map/slice tree, runs the compiled
// JMESPath query against it, and forwards item only if the result is
// truthy. Control messages always pass through unfiltered: routing
// predicates apply to data, not to the control plane.
func (r *Router) Process(ctx *node.Context, item *runtimedata.Data, emit node.EmitFunc) error {
	if item.IsControl() {
		return emit(item)
	}

	result, err := r.query.Search(project(item))
	if err != nil {
		return fmt.Errorf("router %s: evaluate %q: %w", r.name, r.expression, err)
	}
	if !isTruthy(result) {
		return nil
	}
	return emit(item)
}

// project builds the JSON-like document a manifest author's JMESPath
// expression queries, mirroring runtimedata's on-wire field names
// (kind, session_id, plus the one populated payload's fields).
func project(item *runtimedata.Data) map[string]interface{} {
	doc := map[string]interface{}{
		"kind":       item.Kind.String(),
		"session_id": item.SessionID,
		"timestamp":  item.Timestamp,
	}
	switch item.Kind {
	case runtimedata.KindAudio:
		doc["audio"] = map[string]interface{}{
			"sample_rate": item.Audio.SampleRate,
			"channels":    item.Audio.Channels,
			"duration_ms": item.Audio.DurationMS(),
		}
	case runtimedata.KindVideo:
		doc["video"] = map[string]interface{}{
			"width":  item.Video.Width,
			"height": item.Video.Height,
			"fps":    item.Video.FPS,
		}
	case runtimedata.KindText:
		doc["text"] = map[string]interface{}{
			"language": item.Text.Language,
			"length":   len(item.Text.Text),
		}
	case runtimedata.KindTensor:
		shape := make([]interface{}, len(item.Tensor.Shape))
		for i, d := range item.Tensor.Shape {
			shape[i] = d
		}
		doc["tensor"] = map[string]interface{}{"shape": shape}
	case runtimedata.KindFile:
		doc["file"] = map[string]interface{}{
			"mime_type": item.File.MIMEType,
			"size":      item.File.Size,
		}
	}
	return doc
}

// isTruthy mirrors JMESPath's own truth-test (used internally by
// filter expressions) so a bare selector like "audio.sample_rate" is
// true for a populated field and false for a missing one.
func isTruthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}
