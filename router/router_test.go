package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
)

func process(t *testing.T, r *Router, item *runtimedata.Data) []*runtimedata.Data {
	t.Helper()
	var out []*runtimedata.Data
	emit := func(d *runtimedata.Data) error { out = append(out, d); return nil }
	require.NoError(t, r.Process(&node.Context{Context: context.Background(), SessionID: item.SessionID}, item, emit))
	return out
}

func TestRouter_ForwardsMatchingAudio(t *testing.T) {
	r, err := New("sample-rate-gate", "audio.sample_rate == `16000`")
	require.NoError(t, err)

	item, err := runtimedata.Audio("s1", 0, runtimedata.AudioPayload{
		SampleRate: 16000, Channels: 1, Format: runtimedata.SampleFormatI16, Buffer: make([]byte, 32),
	})
	require.NoError(t, err)

	out := process(t, r, item)
	assert.Len(t, out, 1)
}

func TestRouter_DropsNonMatchingAudio(t *testing.T) {
	r, err := New("sample-rate-gate", "audio.sample_rate == `16000`")
	require.NoError(t, err)

	item, err := runtimedata.Audio("s1", 0, runtimedata.AudioPayload{
		SampleRate: 8000, Channels: 1, Format: runtimedata.SampleFormatI16, Buffer: make([]byte, 32),
	})
	require.NoError(t, err)

	out := process(t, r, item)
	assert.Empty(t, out)
}

func TestRouter_FiltersByTextLanguage(t *testing.T) {
	r, err := New("english-only", "text.language == 'en'")
	require.NoError(t, err)

	en := runtimedata.Text("s1", 0, "hello", "en")
	fr := runtimedata.Text("s1", 1, "bonjour", "fr")

	assert.Len(t, process(t, r, en), 1)
	assert.Empty(t, process(t, r, fr))
}

func TestRouter_AlwaysForwardsControlMessages(t *testing.T) {
	r, err := New("never-matches", "kind == 'nonexistent'")
	require.NoError(t, err)

	ctrl := runtimedata.ControlMessageEnvelope("s1", 0, runtimedata.NewFlushBuffer())
	out := process(t, r, ctrl)
	assert.Len(t, out, 1)
}

func TestNew_InvalidExpressionFailsAtConstruction(t *testing.T) {
	_, err := New("bad", "this is not )( valid jmespath")
	assert.Error(t, err)
}
