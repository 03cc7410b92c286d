//////////////////////////////////////////////////////////////////////////////
//
// OpenMAX IL protocol model
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

// Package omx models the OpenMAX IL component protocol as seen by an
// application: component states, commands, port definitions, buffer headers
// and the asynchronous events a component delivers. Concrete components live
// elsewhere (internal/omxil for the vendor library, internal/omx/omxtest for
// the simulator); this package only depends on the Component interface.
package omx

import (
	"fmt"

	"github.com/lanikai/alohaomx/internal/logging"
)

var log = logging.DefaultLogger.WithTag("omx")

// PortIndex identifies a port on a component.
type PortIndex uint32

const (
	InputPort  PortIndex = 0
	OutputPort PortIndex = 1

	// AllPorts is OMX_ALL, used in commands addressing every port.
	AllPorts PortIndex = 0xFFFFFFFF
)

func (p PortIndex) String() string {
	switch p {
	case InputPort:
		return "input"
	case OutputPort:
		return "output"
	case AllPorts:
		return "all"
	default:
		return fmt.Sprintf("port%d", uint32(p))
	}
}

// State is OMX_STATETYPE.
type State uint32

const (
	StateInvalid State = iota
	StateLoaded
	StateIdle
	StateExecuting
	StatePause
	StateWaitForResources
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "OMX_StateInvalid"
	case StateLoaded:
		return "OMX_StateLoaded"
	case StateIdle:
		return "OMX_StateIdle"
	case StateExecuting:
		return "OMX_StateExecuting"
	case StatePause:
		return "OMX_StatePause"
	case StateWaitForResources:
		return "OMX_StateWaitForResources"
	default:
		return fmt.Sprintf("OMX_State(%d)", uint32(s))
	}
}

// Command is OMX_COMMANDTYPE.
type Command uint32

const (
	CommandStateSet Command = iota
	CommandFlush
	CommandPortDisable
	CommandPortEnable
	CommandMarkBuffer
)

func (c Command) String() string {
	switch c {
	case CommandStateSet:
		return "StateSet"
	case CommandFlush:
		return "Flush"
	case CommandPortDisable:
		return "PortDisable"
	case CommandPortEnable:
		return "PortEnable"
	case CommandMarkBuffer:
		return "MarkBuffer"
	default:
		return fmt.Sprintf("Command(%d)", uint32(c))
	}
}

// BufferFlags is the nFlags field of a buffer header.
type BufferFlags uint32

const (
	FlagEOS         BufferFlags = 0x00000001
	FlagStartTime   BufferFlags = 0x00000002
	FlagDecodeOnly  BufferFlags = 0x00000004
	FlagDataCorrupt BufferFlags = 0x00000008
	FlagEndOfFrame  BufferFlags = 0x00000010
	FlagSyncFrame   BufferFlags = 0x00000020
	FlagExtraData   BufferFlags = 0x00000040
	FlagCodecConfig BufferFlags = 0x00000080
)

func (f BufferFlags) Has(flag BufferFlags) bool {
	return f&flag != 0
}

func (f BufferFlags) String() string {
	names := []struct {
		flag BufferFlags
		name string
	}{
		{FlagEOS, "EOS"},
		{FlagStartTime, "STARTTIME"},
		{FlagDecodeOnly, "DECODEONLY"},
		{FlagDataCorrupt, "DATACORRUPT"},
		{FlagEndOfFrame, "ENDOFFRAME"},
		{FlagSyncFrame, "SYNCFRAME"},
		{FlagExtraData, "EXTRADATA"},
		{FlagCodecConfig, "CODECCONFIG"},
	}
	s := ""
	for _, n := range names {
		if f.Has(n.flag) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "0"
	}
	return s
}

// Direction is OMX_DIRTYPE.
type Direction uint32

const (
	DirInput Direction = iota
	DirOutput
)

// Domain is OMX_PORTDOMAINTYPE.
type Domain uint32

const (
	DomainAudio Domain = iota
	DomainVideo
	DomainImage
	DomainOther
)

// ColorFormat is OMX_COLOR_FORMATTYPE. Only the values used by the codec
// samples are named.
type ColorFormat uint32

const (
	ColorFormatUnused           ColorFormat = 0
	ColorFormatYUV420Planar     ColorFormat = 19
	ColorFormatYUV420SemiPlanar ColorFormat = 21
)

func (f ColorFormat) String() string {
	switch f {
	case ColorFormatUnused:
		return "unused"
	case ColorFormatYUV420Planar:
		return "YUV420Planar"
	case ColorFormatYUV420SemiPlanar:
		return "YUV420SemiPlanar"
	default:
		return fmt.Sprintf("ColorFormat(0x%x)", uint32(f))
	}
}

// Coding is OMX_VIDEO_CODINGTYPE.
type Coding uint32

const (
	CodingUnused Coding = iota
	CodingAutoDetect
	CodingMPEG2
	CodingH263
	CodingMPEG4
	CodingWMV
	CodingRV
	CodingAVC
	CodingMJPEG
)

// ControlRate is OMX_VIDEO_CONTROLRATETYPE.
type ControlRate uint32

const (
	ControlRateDisable ControlRate = iota
	ControlRateVariable
	ControlRateConstant
)

// RoundUp returns the smallest value not less than val that is divisible by
// rnd. rnd must be a power of two.
func RoundUp(val, rnd uint32) uint32 {
	return (val + rnd - 1) &^ (rnd - 1)
}

// Stride derives the row stride the hardware expects for a frame width.
func Stride(width uint32) uint32 {
	return RoundUp(width, 32)
}

// SliceHeight derives the slice height for a frame height.
func SliceHeight(height uint32) uint32 {
	return RoundUp(height, 2)
}
