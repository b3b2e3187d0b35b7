package runtimedata

import "errors"

// ErrInvalidData is returned when a RuntimeData envelope fails
// self-consistency validation, either at construction or at decode.
var ErrInvalidData = errors.New("runtimedata: invalid data")

// ErrTruncatedFrame is returned by Decode when the input does not
// contain a complete frame.
var ErrTruncatedFrame = errors.New("runtimedata: truncated frame")
