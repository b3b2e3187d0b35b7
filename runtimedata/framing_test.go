package runtimedata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip_Audio(t *testing.T) {
	d, err := Audio("sess-1", 12345, AudioPayload{
		Buffer:     []byte{1, 2, 3, 4, 5, 6, 7, 8},
		SampleRate: 16000,
		Channels:   2,
		Format:     SampleFormatI16,
	})
	require.NoError(t, err)

	wire, err := Encode(d)
	require.NoError(t, err)

	got, err := Decode(wire)
	require.NoError(t, err)

	assert.Equal(t, d.SessionID, got.SessionID)
	assert.Equal(t, d.Timestamp, got.Timestamp)
	assert.Equal(t, d.Audio, got.Audio)
}

func TestRoundTrip_Video(t *testing.T) {
	d, err := Video("s", 1, VideoPayload{
		Buffer: []byte{9, 9, 9},
		Width:  640, Height: 480, Format: PixelFormatYUV420, FPS: 29.97,
	})
	require.NoError(t, err)
	wire, err := Encode(d)
	require.NoError(t, err)
	got, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, d.Video, got.Video)
}

func TestRoundTrip_Text(t *testing.T) {
	d := Text("s", 0, "hello world", "en")
	wire, err := Encode(d)
	require.NoError(t, err)
	got, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, d.Text, got.Text)
}

func TestRoundTrip_Tensor(t *testing.T) {
	d, err := Tensor("s", 0, TensorPayload{
		Buffer: make([]byte, 2*3*4),
		Shape:  []int64{2, 3},
		Elem:   TensorElemF32,
	})
	require.NoError(t, err)
	wire, err := Encode(d)
	require.NoError(t, err)
	got, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, d.Tensor, got.Tensor)
}

func TestRoundTrip_Control(t *testing.T) {
	msg := NewCancelSpeculation("seg-1", 100, 200)
	d := ControlMessageEnvelope("s", 0, msg)
	wire, err := Encode(d)
	require.NoError(t, err)
	got, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, ControlCancelSpeculation, got.Control.Type)
	assert.Equal(t, msg.CancelSpeculation, got.Control.CancelSpeculation)
}

func TestRoundTrip_File(t *testing.T) {
	d := File("s", 0, FilePayload{
		Path: "/tmp/clip.wav", HasRange: true, Offset: 10, Length: 20,
		MIMEType: "audio/wav", SizeKnown: true, Size: 4096,
	})
	wire, err := Encode(d)
	require.NoError(t, err)
	got, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, d.File, got.File)
}

func TestAudio_InvalidBufferLength(t *testing.T) {
	_, err := Audio("s", 0, AudioPayload{
		Buffer:     []byte{1, 2, 3},
		SampleRate: 16000,
		Channels:   2,
		Format:     SampleFormatI16,
	})
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestDecode_TruncatedFrame(t *testing.T) {
	_, err := Decode([]byte{0, 1})
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestControlMessage_JSONSchema(t *testing.T) {
	msg := NewBatchHint(8)
	raw, err := msg.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"BatchHint"`)
	assert.Contains(t, string(raw), `"suggested_batch_size":8`)

	var decoded ControlMessage
	require.NoError(t, decoded.UnmarshalJSON(raw))
	assert.Equal(t, msg.BatchHint, decoded.BatchHint)
}
