// Package runtimedata defines RuntimeData, the single typed envelope that
// crosses every edge in a pipeline, and its wire framing.
package runtimedata

import (
	"fmt"
)

// Kind tags which variant a Data value carries. Exactly one of the
// corresponding payload fields on Data is non-nil for a given Kind.
type Kind uint8

const (
	KindAudio Kind = iota
	KindVideo
	KindText
	KindTensor
	KindControl
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindText:
		return "text"
	case KindTensor:
		return "tensor"
	case KindControl:
		return "control"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// SampleFormat is the per-sample encoding of an Audio payload.
type SampleFormat uint8

const (
	SampleFormatF32 SampleFormat = iota
	SampleFormatI16
	SampleFormatI24
	SampleFormatI32
	SampleFormatU8
)

// BytesPerSample returns the width of one sample in the given format.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatF32, SampleFormatI32:
		return 4
	case SampleFormatI24:
		return 3
	case SampleFormatI16:
		return 2
	case SampleFormatU8:
		return 1
	default:
		return 0
	}
}

// PixelFormat is the frame layout of a Video payload.
type PixelFormat uint8

const (
	PixelFormatRGB PixelFormat = iota
	PixelFormatRGBA
	PixelFormatYUV420
	PixelFormatYUV422
	PixelFormatYUV444
	PixelFormatBGR
)

// TensorElemType is the element encoding of a Tensor payload.
type TensorElemType uint8

const (
	TensorElemF32 TensorElemType = iota
	TensorElemF64
	TensorElemI32
	TensorElemI64
	TensorElemU8
	TensorElemU16
)

// ElemSize returns the byte width of one tensor element.
func (t TensorElemType) ElemSize() int {
	switch t {
	case TensorElemF64, TensorElemI64:
		return 8
	case TensorElemF32, TensorElemI32:
		return 4
	case TensorElemU16:
		return 2
	case TensorElemU8:
		return 1
	default:
		return 0
	}
}

// AudioPayload is a contiguous sample buffer.
type AudioPayload struct {
	Buffer     []byte
	SampleRate int
	Channels   int
	Format     SampleFormat
}

// DurationMS returns the computed duration of the buffer in milliseconds.
func (a *AudioPayload) DurationMS() float64 {
	bps := a.Format.BytesPerSample()
	if bps == 0 || a.Channels == 0 || a.SampleRate == 0 {
		return 0
	}
	samplesPerChannel := len(a.Buffer) / (a.Channels * bps)
	return float64(samplesPerChannel) * 1000.0 / float64(a.SampleRate)
}

func (a *AudioPayload) validate() error {
	bps := a.Format.BytesPerSample()
	if bps == 0 {
		return fmt.Errorf("%w: unknown sample format", ErrInvalidData)
	}
	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("%w: channels must be 1 or 2, got %d", ErrInvalidData, a.Channels)
	}
	if len(a.Buffer)%(a.Channels*bps) != 0 {
		return fmt.Errorf("%w: buffer length %d not a multiple of channels(%d)*bytes_per_sample(%d)",
			ErrInvalidData, len(a.Buffer), a.Channels, bps)
	}
	return nil
}

// VideoPayload is a single frame buffer.
type VideoPayload struct {
	Buffer []byte
	Width  int
	Height int
	Format PixelFormat
	FPS    float64
}

func (v *VideoPayload) validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: invalid frame dimensions %dx%d", ErrInvalidData, v.Width, v.Height)
	}
	return nil
}

// TextPayload is UTF-8 text with an optional ISO-639-1 language tag.
type TextPayload struct {
	Text     string
	Language string
}

// TensorPayload is row-major contiguous bytes with a declared shape.
type TensorPayload struct {
	Buffer []byte
	Shape  []int64
	Elem   TensorElemType
}

func (t *TensorPayload) validate() error {
	elemSize := t.Elem.ElemSize()
	if elemSize == 0 {
		return fmt.Errorf("%w: unknown tensor element type", ErrInvalidData)
	}
	count := int64(1)
	for _, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative tensor dimension %d", ErrInvalidData, d)
		}
		count *= d
	}
	if len(t.Shape) == 0 {
		count = 1
	}
	if int64(len(t.Buffer)) != count*int64(elemSize) {
		return fmt.Errorf("%w: buffer length %d does not match shape %v * elem size %d",
			ErrInvalidData, len(t.Buffer), t.Shape, elemSize)
	}
	return nil
}

// FilePayload is a reference to file data; the runtime never opens it.
type FilePayload struct {
	Path       string
	HasRange   bool
	Offset     int64
	Length     int64
	MIMEType   string
	SizeKnown  bool
	Size       int64
}

// Data is the tagged envelope that is the only payload type crossing
// pipeline edges. Immutable on the wire: consumers produce new Data
// values rather than mutating one they received.
type Data struct {
	Kind      Kind
	SessionID string
	// Timestamp is microseconds since an arbitrary process-start epoch,
	// monotonic within a session; used only for ordering.
	Timestamp int64

	Audio   *AudioPayload
	Video   *VideoPayload
	Text    *TextPayload
	Tensor  *TensorPayload
	Control *ControlMessage
	File    *FilePayload
}

// IsAudio reports whether d carries an Audio payload, and so on for the
// remaining variants.
func (d *Data) IsAudio() bool   { return d.Kind == KindAudio }
func (d *Data) IsVideo() bool   { return d.Kind == KindVideo }
func (d *Data) IsText() bool    { return d.Kind == KindText }
func (d *Data) IsTensor() bool  { return d.Kind == KindTensor }
func (d *Data) IsControl() bool { return d.Kind == KindControl }
func (d *Data) IsFile() bool    { return d.Kind == KindFile }

// DataType returns the variant tag, mirroring the node-facing
// introspection contract in §4.1.
func (d *Data) DataType() Kind { return d.Kind }

// AsText returns the text payload, or an error if d is not KindText.
func (d *Data) AsText() (string, error) {
	if d.Kind != KindText || d.Text == nil {
		return "", fmt.Errorf("%w: not a text envelope", ErrInvalidData)
	}
	return d.Text.Text, nil
}

// Audio constructs and validates an Audio envelope.
func Audio(sessionID string, timestamp int64, payload AudioPayload) (*Data, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}
	return &Data{Kind: KindAudio, SessionID: sessionID, Timestamp: timestamp, Audio: &payload}, nil
}

// Video constructs and validates a Video envelope.
func Video(sessionID string, timestamp int64, payload VideoPayload) (*Data, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}
	return &Data{Kind: KindVideo, SessionID: sessionID, Timestamp: timestamp, Video: &payload}, nil
}

// Text constructs a Text envelope.
func Text(sessionID string, timestamp int64, text, language string) *Data {
	return &Data{Kind: KindText, SessionID: sessionID, Timestamp: timestamp, Text: &TextPayload{Text: text, Language: language}}
}

// Tensor constructs and validates a Tensor envelope.
func Tensor(sessionID string, timestamp int64, payload TensorPayload) (*Data, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}
	return &Data{Kind: KindTensor, SessionID: sessionID, Timestamp: timestamp, Tensor: &payload}, nil
}

// ControlMessageEnvelope constructs a Control envelope.
func ControlMessageEnvelope(sessionID string, timestamp int64, msg ControlMessage) *Data {
	return &Data{Kind: KindControl, SessionID: sessionID, Timestamp: timestamp, Control: &msg}
}

// File constructs a File envelope.
func File(sessionID string, timestamp int64, payload FilePayload) *Data {
	return &Data{Kind: KindFile, SessionID: sessionID, Timestamp: timestamp, File: &payload}
}
