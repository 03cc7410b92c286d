//////////////////////////////////////////////////////////////////////////////
//
// Config contains configuration data for Session
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package alohaomx

import (
	"time"

	"github.com/lanikai/alohaomx/internal/omx"
)

// Role selects what the component does with the stream.
type Role int

const (
	// Decoder turns an H.264 elementary stream into raw frames.
	Decoder Role = iota

	// Encoder turns raw frames into an H.264 elementary stream.
	Encoder
)

func (r Role) String() string {
	switch r {
	case Decoder:
		return "decoder"
	case Encoder:
		return "encoder"
	default:
		return "unknown"
	}
}

const (
	DecoderName = "OMX.RENESAS.VIDEO.DECODER.H264"
	EncoderName = "OMX.RENESAS.VIDEO.ENCODER.H264"
)

type Config struct {
	Role Role

	// Component to open. Defaults to the vendor name for Role.
	ComponentName string

	// Buffer counts. Zero selects the role default.
	InputBuffers  uint32
	OutputBuffers uint32

	// Raw format the decoder writes.
	OutputColorFormat omx.ColorFormat

	// Encoder input geometry and rate control.
	Width            uint32
	Height           uint32
	InputColorFormat omx.ColorFormat
	Bitrate          uint32 // bits per second
	FrameRate        uint32 // frames per second

	// Interval between state polls.
	PollInterval time.Duration

	// Bound on every state transition and port command.
	CommandTimeout time.Duration

	// Bound on the wait for end of stream. Zero waits forever.
	StreamTimeout time.Duration

	// Non-severe component errors tolerated before the run is aborted.
	// Zero selects the default of 8 and negative disables the limit.
	MaxRuntimeErrors int

	// Abort on the first component error, whatever MaxRuntimeErrors says.
	StrictRuntimeErrors bool
}

const (
	defaultCommandTimeout   = 5 * time.Second
	defaultMaxRuntimeErrors = 8

	defaultWidth     = 640
	defaultHeight    = 480
	defaultBitrate   = 5000000
	defaultFrameRate = 30
)

func (c Config) withDefaults() Config {
	if c.ComponentName == "" {
		if c.Role == Encoder {
			c.ComponentName = EncoderName
		} else {
			c.ComponentName = DecoderName
		}
	}
	if c.InputBuffers == 0 {
		c.InputBuffers = 2
	}
	if c.OutputBuffers == 0 {
		if c.Role == Encoder {
			c.OutputBuffers = 2
		} else {
			c.OutputBuffers = 3
		}
	}
	if c.OutputColorFormat == omx.ColorFormatUnused {
		c.OutputColorFormat = omx.ColorFormatYUV420SemiPlanar
	}
	if c.InputColorFormat == omx.ColorFormatUnused {
		c.InputColorFormat = omx.ColorFormatYUV420SemiPlanar
	}
	if c.Width == 0 {
		c.Width = defaultWidth
	}
	if c.Height == 0 {
		c.Height = defaultHeight
	}
	if c.Bitrate == 0 {
		c.Bitrate = defaultBitrate
	}
	if c.FrameRate == 0 {
		c.FrameRate = defaultFrameRate
	}
	if c.PollInterval <= 0 {
		c.PollInterval = omx.DefaultPollInterval
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = defaultCommandTimeout
	}
	if c.MaxRuntimeErrors == 0 {
		c.MaxRuntimeErrors = defaultMaxRuntimeErrors
	}
	return c
}

// FrameSize is the byte size of one raw 4:2:0 frame at the configured
// geometry, without stride padding.
func (c Config) FrameSize() int {
	c = c.withDefaults()
	return int(c.Width) * int(c.Height) * 3 / 2
}
