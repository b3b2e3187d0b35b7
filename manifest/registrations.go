package manifest

import (
	"fmt"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/audio"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/router"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/vadgate"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/videoresize"
)

// init registers the node_types this module ships out of the box
// (§6.3's "registered-name") on DefaultRegistry, the same way a
// database driver registers itself with database/sql from an init().
func init() {
	DefaultRegistry.Register("vad_gate", newVADGateNode)
	DefaultRegistry.Register("passthrough", newPassthroughNode)
	DefaultRegistry.Register("jmespath_router", newJMESPathRouterNode)
	DefaultRegistry.Register("video_resize", newVideoResizeNode)
}

// newVADGateNode builds a vadgate.Gate from manifest params, backed by
// a SimpleVAD analyzer configured from the same params (sample_rate,
// confidence, start_secs, stop_secs, min_volume).
func newVADGateNode(params map[string]interface{}) (node.Node, error) {
	vadParams := audio.VADParams{
		Confidence: paramFloat(params, "confidence", 0.5),
		StartSecs:  paramFloat(params, "start_secs", 0.2),
		StopSecs:   paramFloat(params, "stop_secs", 0.8),
		MinVolume:  paramFloat(params, "min_volume", 0.01),
		SampleRate: paramInt(params, "sample_rate", 16000),
	}
	analyzer, err := audio.NewSimpleVAD(vadParams)
	if err != nil {
		return nil, fmt.Errorf("vad_gate: %w", err)
	}

	gateParams := vadgate.DefaultParams()
	gateParams.MinSpeechDuration = paramDurationMS(params, "min_speech_duration_ms", gateParams.MinSpeechDuration)
	gateParams.TrailingSilenceDuration = paramDurationMS(params, "trailing_silence_duration_ms", gateParams.TrailingSilenceDuration)
	gateParams.MaxSilenceGap = paramDurationMS(params, "max_silence_gap_ms", gateParams.MaxSilenceGap)
	gateParams.PreSpeechBuffer = paramDurationMS(params, "pre_speech_buffer_ms", gateParams.PreSpeechBuffer)

	name := paramString(params, "name", "vad_gate")
	return vadgate.New(name, analyzer, gateParams), nil
}

// passthroughNode forwards its input unchanged; useful as a manifest
// placeholder node_type while exercising topology-only tests.
type passthroughNode struct {
	name string
}

func newPassthroughNode(params map[string]interface{}) (node.Node, error) {
	return &passthroughNode{name: paramString(params, "name", "passthrough")}, nil
}

func (p *passthroughNode) Name() string                      { return p.name }
func (p *passthroughNode) Initialize(ctx *node.Context) error { return nil }
func (p *passthroughNode) Cleanup(ctx *node.Context) error    { return nil }
func (p *passthroughNode) Process(ctx *node.Context, item *runtimedata.Data, emit node.EmitFunc) error {
	return emit(item)
}

// newJMESPathRouterNode builds a router.Router from a manifest node's
// "expression" param, e.g. {"expression": "audio.sample_rate == `16000`"}
// to drop everything but 16kHz audio on this edge.
func newJMESPathRouterNode(params map[string]interface{}) (node.Node, error) {
	expr := paramString(params, "expression", "")
	if expr == "" {
		return nil, fmt.Errorf("jmespath_router: missing required param %q", "expression")
	}
	name := paramString(params, "name", "jmespath_router")
	return router.New(name, expr)
}

// newVideoResizeNode builds a videoresize.Resizer from a manifest
// node's "width"/"height" params, e.g. {"width": 640, "height": 360}
// to downscale frames larger than that before they reach a model node.
func newVideoResizeNode(params map[string]interface{}) (node.Node, error) {
	width := paramInt(params, "width", 0)
	height := paramInt(params, "height", 0)
	name := paramString(params, "name", "video_resize")
	return videoresize.New(name, width, height)
}
