// Package vadgate implements the Speculative VAD Gate (§4.6): an
// edge-insertable node placed between a VAD analyzer and an expensive
// downstream consumer (ASR/LLM) that forwards audio before the VAD has
// finalized a segment, then emits CancelSpeculation if the segment
// turns out to be a false positive.
package vadgate

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/audio"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/events"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/logger"
	prommetrics "github.com/matbeedotcom/remotemedia-sdk-sub000/metrics/prometheus"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/node"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
)

// gateState is the gate's own state machine (§4.6), distinct from the
// underlying audio.VADAnalyzer's finer-grained VADState.
type gateState int

const (
	gateIdle gateState = iota
	gateSpeculating
)

// Params tunes speculation timing (§4.6).
type Params struct {
	// MinSpeechDuration is the minimum accumulated speech time before a
	// segment is considered confirmed rather than a false positive.
	MinSpeechDuration time.Duration
	// TrailingSilenceDuration is how much trailing silence confirms
	// end-of-speech and triggers the confirm/cancel decision.
	TrailingSilenceDuration time.Duration
	// MaxSilenceGap is the longest silence gap tolerated inside one
	// utterance before it is treated as trailing silence.
	MaxSilenceGap time.Duration
	// PreSpeechBuffer is how much audio immediately preceding detected
	// speech onset is retroactively forwarded once speculation begins.
	PreSpeechBuffer time.Duration
}

// DefaultParams returns the gate's default timing, consistent with
// spec scenario S4 (200ms of speech below a 300ms minimum is cancelled).
func DefaultParams() Params {
	return Params{
		MinSpeechDuration:       300 * time.Millisecond,
		TrailingSilenceDuration: 300 * time.Millisecond,
		MaxSilenceGap:           500 * time.Millisecond,
		PreSpeechBuffer:         200 * time.Millisecond,
	}
}

// Gate is the Speculative VAD Gate node. It owns one audio.VADAnalyzer;
// the analyzer's own Start/Stop thresholds decide moment-to-moment
// speech/quiet classification, while Gate layers the
// confirm-or-cancel-a-segment decision on top.
type Gate struct {
	name     string
	analyzer audio.VADAnalyzer
	params   Params
	log      *slog.Logger

	state         gateState
	segmentID     string
	speechAccum   time.Duration
	silenceAccum  time.Duration
	segmentStart  int64 // RuntimeData timestamp (us) of speculation onset
	preSpeechBuf  []*runtimedata.Data
	preSpeechDurN time.Duration

	events *events.Emitter // nil unless WithEvents is used
}

// New constructs a Gate wrapping analyzer.
func New(name string, analyzer audio.VADAnalyzer, params Params) *Gate {
	return &Gate{
		name:     name,
		analyzer: analyzer,
		params:   params,
		log:      logger.DefaultLogger.With("component", "vadgate.Gate", "node", name),
	}
}

// WithEvents attaches an emitter so confirm/cancel decisions publish
// vad.segment_confirmed / vad.segment_cancelled events (§4.6) alongside
// the vad_segments_total counter.
func (g *Gate) WithEvents(emitter *events.Emitter) *Gate {
	g.events = emitter
	return g
}

func (g *Gate) Name() string { return g.name }

func (g *Gate) Initialize(ctx *node.Context) error {
	g.analyzer.Reset()
	return nil
}

func (g *Gate) Cleanup(ctx *node.Context) error {
	return nil
}

func (g *Gate) IsStreaming() bool { return true }

// Process classifies each Audio item against the VAD analyzer and
// drives the Idle -> Speculating -> (Confirmed | Cancelled) -> Idle
// state machine (§4.6). Each segment_id is confirmed or cancelled
// exactly once.
func (g *Gate) Process(ctx *node.Context, item *runtimedata.Data, emit node.EmitFunc) error {
	if !item.IsAudio() {
		return emit(item)
	}

	prob, err := g.analyzer.Analyze(ctx, item.Audio.Buffer)
	if err != nil {
		return fmt.Errorf("vadgate: analyze: %w", err)
	}
	speaking := g.analyzer.State() == audio.VADStateSpeaking || g.analyzer.State() == audio.VADStateStarting
	itemDur := time.Duration(item.Audio.DurationMS() * float64(time.Millisecond))
	g.log.Debug("analyzed frame", "probability", prob, "speaking", speaking, "state", g.state)

	switch g.state {
	case gateIdle:
		if speaking {
			return g.beginSpeculation(item, itemDur, emit)
		}
		g.bufferPreSpeech(item, itemDur)
		return nil

	case gateSpeculating:
		if speaking {
			g.speechAccum += itemDur
			g.silenceAccum = 0
		} else {
			g.silenceAccum += itemDur
		}
		if err := emit(item); err != nil {
			return err
		}
		if g.silenceAccum >= g.params.TrailingSilenceDuration {
			return g.finalizeSegment(item.SessionID, item.Timestamp, emit)
		}
		return nil
	}
	return nil
}

func (g *Gate) bufferPreSpeech(item *runtimedata.Data, dur time.Duration) {
	g.preSpeechBuf = append(g.preSpeechBuf, item)
	g.preSpeechDurN += dur
	for g.preSpeechDurN > g.params.PreSpeechBuffer && len(g.preSpeechBuf) > 0 {
		dropped := g.preSpeechBuf[0]
		g.preSpeechBuf = g.preSpeechBuf[1:]
		g.preSpeechDurN -= time.Duration(dropped.Audio.DurationMS() * float64(time.Millisecond))
	}
}

func (g *Gate) beginSpeculation(item *runtimedata.Data, itemDur time.Duration, emit node.EmitFunc) error {
	g.state = gateSpeculating
	g.segmentID = uuid.NewString()
	g.speechAccum = itemDur
	g.silenceAccum = 0
	if len(g.preSpeechBuf) > 0 {
		g.segmentStart = g.preSpeechBuf[0].Timestamp
	} else {
		g.segmentStart = item.Timestamp
	}
	g.log.Info("speculation begins", "segment_id", g.segmentID)

	for _, buffered := range g.preSpeechBuf {
		if err := emit(buffered); err != nil {
			return err
		}
	}
	g.preSpeechBuf = nil
	g.preSpeechDurN = 0
	return emit(item)
}

func (g *Gate) finalizeSegment(sessionID string, endTimestamp int64, emit node.EmitFunc) error {
	confirmed := g.speechAccum >= g.params.MinSpeechDuration
	segmentID := g.segmentID
	segmentStart := g.segmentStart

	g.state = gateIdle
	g.segmentID = ""
	g.speechAccum = 0
	g.silenceAccum = 0

	if confirmed {
		g.log.Info("speculation confirmed", "segment_id", segmentID)
		prommetrics.RecordVADSegment(g.name, true)
		if g.events != nil {
			g.events.VADSegmentConfirmed(g.name, sessionID, segmentID)
		}
		return nil
	}

	g.log.Info("speculation cancelled", "segment_id", segmentID)
	prommetrics.RecordVADSegment(g.name, false)
	if g.events != nil {
		g.events.VADSegmentCancelled(g.name, sessionID, segmentID)
	}
	cancel := runtimedata.NewCancelSpeculation(segmentID, segmentStart, endTimestamp)
	return emit(runtimedata.ControlMessageEnvelope(sessionID, endTimestamp, cancel))
}
