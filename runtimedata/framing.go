package runtimedata

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Encode serializes d into its wire frame:
//
//	type(1) | session_len(2) | session bytes | timestamp(8) | payload_len(4) | payload bytes
//
// all integers little-endian. The payload layout is fixed per variant
// (§4.1) so a receiver can two-pass parse the fixed prefix with no
// allocation and treat the payload as a zero-copy slice.
func Encode(d *Data) ([]byte, error) {
	payload, err := encodePayload(d)
	if err != nil {
		return nil, err
	}
	session := []byte(d.SessionID)
	if len(session) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: session id too long", ErrInvalidData)
	}
	buf := make([]byte, 1+2+len(session)+8+4+len(payload))
	off := 0
	buf[off] = byte(d.Kind)
	off++
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(session)))
	off += 2
	off += copy(buf[off:], session)
	binary.LittleEndian.PutUint64(buf[off:], uint64(d.Timestamp))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(payload)))
	off += 4
	copy(buf[off:], payload)
	return buf, nil
}

// Decode parses a single frame previously produced by Encode.
func Decode(buf []byte) (*Data, error) {
	if len(buf) < 1+2 {
		return nil, ErrTruncatedFrame
	}
	kind := Kind(buf[0])
	off := 1
	sessionLen := int(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	if len(buf) < off+sessionLen+8+4 {
		return nil, ErrTruncatedFrame
	}
	sessionID := string(buf[off : off+sessionLen])
	off += sessionLen
	timestamp := int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	payloadLen := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if len(buf) < off+payloadLen {
		return nil, ErrTruncatedFrame
	}
	payload := buf[off : off+payloadLen]
	d := &Data{Kind: kind, SessionID: sessionID, Timestamp: timestamp}
	if err := decodePayload(d, payload); err != nil {
		return nil, err
	}
	return d, nil
}

func encodePayload(d *Data) ([]byte, error) {
	switch d.Kind {
	case KindAudio:
		a := d.Audio
		if a == nil {
			return nil, fmt.Errorf("%w: audio kind with nil payload", ErrInvalidData)
		}
		buf := make([]byte, 4+1+1+2+len(a.Buffer))
		binary.LittleEndian.PutUint32(buf[0:], uint32(a.SampleRate))
		buf[4] = byte(a.Channels)
		buf[5] = byte(a.Format)
		copy(buf[8:], a.Buffer)
		return buf, nil
	case KindVideo:
		v := d.Video
		if v == nil {
			return nil, fmt.Errorf("%w: video kind with nil payload", ErrInvalidData)
		}
		buf := make([]byte, 4+4+1+8+len(v.Buffer))
		binary.LittleEndian.PutUint32(buf[0:], uint32(v.Width))
		binary.LittleEndian.PutUint32(buf[4:], uint32(v.Height))
		buf[8] = byte(v.Format)
		binary.LittleEndian.PutUint64(buf[9:], math.Float64bits(v.FPS))
		copy(buf[17:], v.Buffer)
		return buf, nil
	case KindText:
		t := d.Text
		if t == nil {
			return nil, fmt.Errorf("%w: text kind with nil payload", ErrInvalidData)
		}
		lang := []byte(t.Language)
		if len(lang) > math.MaxUint8 {
			return nil, fmt.Errorf("%w: language tag too long", ErrInvalidData)
		}
		text := []byte(t.Text)
		buf := make([]byte, 1+len(lang)+len(text))
		buf[0] = byte(len(lang))
		off := 1
		off += copy(buf[off:], lang)
		copy(buf[off:], text)
		return buf, nil
	case KindTensor:
		ts := d.Tensor
		if ts == nil {
			return nil, fmt.Errorf("%w: tensor kind with nil payload", ErrInvalidData)
		}
		if len(ts.Shape) > math.MaxUint8 {
			return nil, fmt.Errorf("%w: too many tensor dimensions", ErrInvalidData)
		}
		buf := make([]byte, 1+1+8*len(ts.Shape)+len(ts.Buffer))
		buf[0] = byte(ts.Elem)
		buf[1] = byte(len(ts.Shape))
		off := 2
		for _, dim := range ts.Shape {
			binary.LittleEndian.PutUint64(buf[off:], uint64(dim))
			off += 8
		}
		copy(buf[off:], ts.Buffer)
		return buf, nil
	case KindControl:
		if d.Control == nil {
			return nil, fmt.Errorf("%w: control kind with nil payload", ErrInvalidData)
		}
		return json.Marshal(d.Control)
	case KindFile:
		f := d.File
		if f == nil {
			return nil, fmt.Errorf("%w: file kind with nil payload", ErrInvalidData)
		}
		mime := []byte(f.MIMEType)
		path := []byte(f.Path)
		if len(mime) > math.MaxUint16 || len(path) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: mime type or path too long", ErrInvalidData)
		}
		buf := make([]byte, 1+8+8+2+len(mime)+1+8+2+len(path))
		off := 0
		if f.HasRange {
			buf[off] = 1
		}
		off++
		binary.LittleEndian.PutUint64(buf[off:], uint64(f.Offset))
		off += 8
		binary.LittleEndian.PutUint64(buf[off:], uint64(f.Length))
		off += 8
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(mime)))
		off += 2
		off += copy(buf[off:], mime)
		if f.SizeKnown {
			buf[off] = 1
		}
		off++
		binary.LittleEndian.PutUint64(buf[off:], uint64(f.Size))
		off += 8
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(path)))
		off += 2
		copy(buf[off:], path)
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidData, d.Kind)
	}
}

func decodePayload(d *Data, payload []byte) error {
	switch d.Kind {
	case KindAudio:
		if len(payload) < 8 {
			return ErrTruncatedFrame
		}
		a := &AudioPayload{
			SampleRate: int(binary.LittleEndian.Uint32(payload[0:])),
			Channels:   int(payload[4]),
			Format:     SampleFormat(payload[5]),
			Buffer:     append([]byte(nil), payload[8:]...),
		}
		if err := a.validate(); err != nil {
			return err
		}
		d.Audio = a
		return nil
	case KindVideo:
		if len(payload) < 17 {
			return ErrTruncatedFrame
		}
		v := &VideoPayload{
			Width:  int(binary.LittleEndian.Uint32(payload[0:])),
			Height: int(binary.LittleEndian.Uint32(payload[4:])),
			Format: PixelFormat(payload[8]),
			FPS:    math.Float64frombits(binary.LittleEndian.Uint64(payload[9:])),
			Buffer: append([]byte(nil), payload[17:]...),
		}
		if err := v.validate(); err != nil {
			return err
		}
		d.Video = v
		return nil
	case KindText:
		if len(payload) < 1 {
			return ErrTruncatedFrame
		}
		langLen := int(payload[0])
		if len(payload) < 1+langLen {
			return ErrTruncatedFrame
		}
		d.Text = &TextPayload{
			Language: string(payload[1 : 1+langLen]),
			Text:     string(payload[1+langLen:]),
		}
		return nil
	case KindTensor:
		if len(payload) < 2 {
			return ErrTruncatedFrame
		}
		elem := TensorElemType(payload[0])
		ndims := int(payload[1])
		off := 2
		if len(payload) < off+8*ndims {
			return ErrTruncatedFrame
		}
		shape := make([]int64, ndims)
		for i := 0; i < ndims; i++ {
			shape[i] = int64(binary.LittleEndian.Uint64(payload[off:]))
			off += 8
		}
		ts := &TensorPayload{Elem: elem, Shape: shape, Buffer: append([]byte(nil), payload[off:]...)}
		if err := ts.validate(); err != nil {
			return err
		}
		d.Tensor = ts
		return nil
	case KindControl:
		var cm ControlMessage
		if err := json.Unmarshal(payload, &cm); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		d.Control = &cm
		return nil
	case KindFile:
		if len(payload) < 1+8+8+2 {
			return ErrTruncatedFrame
		}
		off := 0
		hasRange := payload[off] == 1
		off++
		offset := int64(binary.LittleEndian.Uint64(payload[off:]))
		off += 8
		length := int64(binary.LittleEndian.Uint64(payload[off:]))
		off += 8
		mimeLen := int(binary.LittleEndian.Uint16(payload[off:]))
		off += 2
		if len(payload) < off+mimeLen+1+8+2 {
			return ErrTruncatedFrame
		}
		mime := string(payload[off : off+mimeLen])
		off += mimeLen
		sizeKnown := payload[off] == 1
		off++
		size := int64(binary.LittleEndian.Uint64(payload[off:]))
		off += 8
		pathLen := int(binary.LittleEndian.Uint16(payload[off:]))
		off += 2
		if len(payload) < off+pathLen {
			return ErrTruncatedFrame
		}
		path := string(payload[off : off+pathLen])
		d.File = &FilePayload{
			Path: path, HasRange: hasRange, Offset: offset, Length: length,
			MIMEType: mime, SizeKnown: sizeKnown, Size: size,
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidData, d.Kind)
	}
}
