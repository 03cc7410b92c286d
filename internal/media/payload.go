package media

import (
	"time"
)

// Payload is one unit of upstream data handed to a component input buffer:
// an H.264 access unit, or one raw frame.
type Payload struct {
	Data []byte

	// Data completes a frame.
	EndOfFrame bool

	// Presentation time, relative to the start of the stream.
	Timestamp time.Duration
}

// PayloadSource is a pull-style producer. ReadPayload returns io.EOF once
// the input is exhausted; an empty payload also means end of input.
type PayloadSource interface {
	ReadPayload() (Payload, error)
	Close() error
}
