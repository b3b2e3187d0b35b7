// Package videoresize implements a node type that rescales raw video
// frames in-stream, grounded on media.ResizeFrame (itself grounded on
// media.ResizeImage's encoded-image resize pipeline).
package videoresize

import (
	"fmt"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/media"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
)

// Resizer rescales every video frame it sees to a fixed target size.
// Non-video items pass through unchanged.
type Resizer struct {
	name          string
	targetWidth   int
	targetHeight  int
	skipIfSmaller bool
}

// New builds a Resizer targeting targetWidth x targetHeight.
func New(name string, targetWidth, targetHeight int) (*Resizer, error) {
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, fmt.Errorf("videoresize: target size must be positive, got %dx%d", targetWidth, targetHeight)
	}
	return &Resizer{name: name, targetWidth: targetWidth, targetHeight: targetHeight, skipIfSmaller: true}, nil
}

func (r *Resizer) Name() string                      { return r.name }
func (r *Resizer) Initialize(ctx *node.Context) error { return nil }
func (r *Resizer) Cleanup(ctx *node.Context) error    { return nil }

func (r *Resizer) Process(ctx *node.Context, item *runtimedata.Data, emit node.EmitFunc) error {
	if !item.IsVideo() {
		return emit(item)
	}
	v := item.Video

	if r.skipIfSmaller && v.Width <= r.targetWidth && v.Height <= r.targetHeight {
		return emit(item)
	}

	format, err := frameFormat(v.Format)
	if err != nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}

	resized, err := media.ResizeFrame(v.Buffer, v.Width, v.Height, format, r.targetWidth, r.targetHeight)
	if err != nil {
		return fmt.Errorf("%s: resize frame: %w", r.name, err)
	}

	out, err := runtimedata.Video(item.SessionID, item.Timestamp, runtimedata.VideoPayload{
		Buffer: resized,
		Width:  r.targetWidth,
		Height: r.targetHeight,
		Format: v.Format,
		FPS:    v.FPS,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}
	return emit(out)
}

func frameFormat(f runtimedata.PixelFormat) (media.FramePixelFormat, error) {
	switch f {
	case runtimedata.PixelFormatRGB:
		return media.FrameRGB, nil
	case runtimedata.PixelFormatRGBA:
		return media.FrameRGBA, nil
	case runtimedata.PixelFormatBGR:
		return media.FrameBGR, nil
	default:
		return 0, fmt.Errorf("pixel format %v not supported by videoresize (YUV frames must be converted to RGB upstream)", f)
	}
}
