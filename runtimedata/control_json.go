package runtimedata

import (
	"encoding/json"
	"fmt"
)

// wireControlMessage mirrors the §6.4 JSON schema:
//
//	{ "message_type": { "CancelSpeculation": {...} | "BatchHint": {...} |
//	                     "DeadlineWarning": {...} | "FlushBuffer": {} },
//	  "segment_id"?: "...", "metadata"?: {...} }
type wireControlMessage struct {
	MessageType map[string]json.RawMessage `json:"message_type"`
	SegmentID   string                     `json:"segment_id,omitempty"`
	Metadata    map[string]interface{}     `json:"metadata,omitempty"`
}

// MarshalJSON renders a ControlMessage in the §6.4 wire schema.
func (c ControlMessage) MarshalJSON() ([]byte, error) {
	var body interface{}
	switch c.Type {
	case ControlCancelSpeculation:
		body = c.CancelSpeculation
	case ControlBatchHint:
		body = c.BatchHint
	case ControlDeadlineWarning:
		body = c.DeadlineWarning
	case ControlFlushBuffer:
		body = struct{}{}
	default:
		return nil, fmt.Errorf("%w: unknown control message type %q", ErrInvalidData, c.Type)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	w := wireControlMessage{
		MessageType: map[string]json.RawMessage{string(c.Type): raw},
		SegmentID:   c.SegmentID,
		Metadata:    c.Metadata,
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses a ControlMessage from the §6.4 wire schema.
func (c *ControlMessage) UnmarshalJSON(data []byte) error {
	var w wireControlMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.MessageType) != 1 {
		return fmt.Errorf("%w: message_type must have exactly one key, got %d", ErrInvalidData, len(w.MessageType))
	}
	c.SegmentID = w.SegmentID
	c.Metadata = w.Metadata
	for k, raw := range w.MessageType {
		c.Type = ControlMessageType(k)
		switch c.Type {
		case ControlCancelSpeculation:
			c.CancelSpeculation = &CancelSpeculation{}
			if err := json.Unmarshal(raw, c.CancelSpeculation); err != nil {
				return err
			}
			if c.SegmentID == "" {
				c.SegmentID = c.CancelSpeculation.SegmentID
			}
		case ControlBatchHint:
			c.BatchHint = &BatchHint{}
			if err := json.Unmarshal(raw, c.BatchHint); err != nil {
				return err
			}
		case ControlDeadlineWarning:
			c.DeadlineWarning = &DeadlineWarning{}
			if err := json.Unmarshal(raw, c.DeadlineWarning); err != nil {
				return err
			}
		case ControlFlushBuffer:
			// no body
		default:
			return fmt.Errorf("%w: unknown control message type %q", ErrInvalidData, c.Type)
		}
	}
	return nil
}
