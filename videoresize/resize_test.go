package videoresize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
)

func process(t *testing.T, r *Resizer, item *runtimedata.Data) []*runtimedata.Data {
	t.Helper()
	var out []*runtimedata.Data
	err := r.Process(&node.Context{Context: context.Background(), SessionID: "s1"}, item, func(d *runtimedata.Data) error {
		out = append(out, d)
		return nil
	})
	require.NoError(t, err)
	return out
}

func videoItem(t *testing.T, w, h int, format runtimedata.PixelFormat) *runtimedata.Data {
	t.Helper()
	buf := make([]byte, w*h*4)
	d, err := runtimedata.Video("s1", 0, runtimedata.VideoPayload{Buffer: buf, Width: w, Height: h, Format: format, FPS: 30})
	require.NoError(t, err)
	return d
}

func TestResizer_DownscalesLargerFrame(t *testing.T) {
	r, err := New("resize", 64, 48)
	require.NoError(t, err)

	out := process(t, r, videoItem(t, 640, 480, runtimedata.PixelFormatRGBA))
	require.Len(t, out, 1)
	assert.Equal(t, 64, out[0].Video.Width)
	assert.Equal(t, 48, out[0].Video.Height)
	assert.Len(t, out[0].Video.Buffer, 64*48*4)
}

func TestResizer_SkipsFrameAlreadySmallerThanTarget(t *testing.T) {
	r, err := New("resize", 640, 480)
	require.NoError(t, err)

	in := videoItem(t, 64, 48, runtimedata.PixelFormatRGBA)
	out := process(t, r, in)
	require.Len(t, out, 1)
	assert.Same(t, in, out[0])
}

func TestResizer_PassesThroughNonVideoItems(t *testing.T) {
	r, err := New("resize", 64, 48)
	require.NoError(t, err)

	in := runtimedata.Text("s1", 0, "hello", "en")
	out := process(t, r, in)
	require.Len(t, out, 1)
	assert.Same(t, in, out[0])
}

func TestResizer_YUVFrameIsError(t *testing.T) {
	r, err := New("resize", 64, 48)
	require.NoError(t, err)

	item := videoItem(t, 640, 480, runtimedata.PixelFormatYUV420)
	err = r.Process(&node.Context{Context: context.Background(), SessionID: "s1"}, item, func(d *runtimedata.Data) error { return nil })
	assert.Error(t, err)
}

func TestNew_RejectsNonPositiveTargetSize(t *testing.T) {
	_, err := New("resize", 0, 48)
	assert.Error(t, err)
}
