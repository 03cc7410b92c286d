//go:build linux || darwin
// +build linux darwin

package omxil

import (
	"unsafe"

	"github.com/lanikai/alohaomx/internal/omx"
)

// OpenMAX IL 1.1.2, packed as nVersionMajor, nVersionMinor, nRevision, nStep.
const specVersion = 0x00020101

const (
	omxFalse = 0
	omxTrue  = 1
)

// OMX_EVENTTYPE
const (
	eventCmdComplete         = 0
	eventError               = 1
	eventMark                = 2
	eventPortSettingsChanged = 3
	eventBufferFlag          = 4
)

// componentType is OMX_COMPONENTTYPE: the handle returned by OMX_GetHandle
// points at one of these.
type componentType struct {
	size                   uint32
	version                uint32
	componentPrivate       uintptr
	applicationPrivate     uintptr
	getComponentVersion    uintptr
	sendCommand            uintptr
	getParameter           uintptr
	setParameter           uintptr
	getConfig              uintptr
	setConfig              uintptr
	getExtensionIndex      uintptr
	getState               uintptr
	componentTunnelRequest uintptr
	useBuffer              uintptr
	allocateBuffer         uintptr
	freeBuffer             uintptr
	emptyThisBuffer        uintptr
	fillThisBuffer         uintptr
	setCallbacks           uintptr
	componentDeInit        uintptr
	useEGLImage            uintptr
	componentRoleEnum      uintptr
}

// callbackType is OMX_CALLBACKTYPE.
type callbackType struct {
	eventHandler    uintptr
	emptyBufferDone uintptr
	fillBufferDone  uintptr
}

// bufferHeader is OMX_BUFFERHEADERTYPE.
type bufferHeader struct {
	size                uint32
	version             uint32
	buffer              uintptr
	allocLen            uint32
	filledLen           uint32
	offset              uint32
	appPrivate          uintptr
	platformPrivate     uintptr
	inputPortPrivate    uintptr
	outputPortPrivate   uintptr
	markTargetComponent uintptr
	markData            uintptr
	tickCount           uint32
	timeStamp           int64
	flags               uint32
	outputPortIndex     uint32
	inputPortIndex      uint32
}

// videoPortDefinition is OMX_VIDEO_PORTDEFINITIONTYPE, the largest member
// of the port definition's format union.
type videoPortDefinition struct {
	mimeType             uintptr
	nativeRender         uintptr
	frameWidth           uint32
	frameHeight          uint32
	stride               int32
	sliceHeight          uint32
	bitrate              uint32
	framerate            uint32
	flagErrorConcealment uint32
	compressionFormat    uint32
	colorFormat          uint32
	nativeWindow         uintptr
}

// portDefinition is OMX_PARAM_PORTDEFINITIONTYPE.
type portDefinition struct {
	size              uint32
	version           uint32
	portIndex         uint32
	dir               uint32
	bufferCountActual uint32
	bufferCountMin    uint32
	bufferSize        uint32
	enabled           uint32
	populated         uint32
	domain            uint32
	video             videoPortDefinition
	buffersContiguous uint32
	bufferAlignment   uint32
}

// videoBitrate is OMX_VIDEO_PARAM_BITRATETYPE.
type videoBitrate struct {
	size          uint32
	version       uint32
	portIndex     uint32
	controlRate   uint32
	targetBitrate uint32
}

// avcVuiProperty is the part of the vendor VUI property structure that
// carries timing information.
type avcVuiProperty struct {
	size                  uint32
	version               uint32
	portIndex             uint32
	timeScale             uint32
	numUnitsInTick        uint32
	fixedFrameRateFlag    uint32
	timingInfoPresentFlag uint32
}

func boolOf(b uint32) bool {
	return b != omxFalse
}

func omxBool(b bool) uint32 {
	if b {
		return omxTrue
	}
	return omxFalse
}

// Translate an omx.Param into a freshly allocated C structure. The result
// is heap memory, so its address stays fixed across the call.
func marshalParam(p omx.Param) (index uint32, ptr unsafe.Pointer, ok bool) {
	switch p := p.(type) {
	case *omx.PortDefinition:
		d := &portDefinition{
			portIndex:         uint32(p.Port),
			dir:               uint32(p.Direction),
			bufferCountActual: p.BufferCountActual,
			bufferCountMin:    p.BufferCountMin,
			bufferSize:        p.BufferSize,
			enabled:           omxBool(p.Enabled),
			populated:         omxBool(p.Populated),
			domain:            uint32(p.Domain),
			bufferAlignment:   p.BufferAlignment,
			video: videoPortDefinition{
				frameWidth:        p.Video.FrameWidth,
				frameHeight:       p.Video.FrameHeight,
				stride:            p.Video.Stride,
				sliceHeight:       p.Video.SliceHeight,
				bitrate:           p.Video.Bitrate,
				framerate:         p.Video.Framerate,
				compressionFormat: uint32(p.Video.Compression),
				colorFormat:       uint32(p.Video.Color),
			},
		}
		d.size, d.version = uint32(unsafe.Sizeof(*d)), specVersion
		return uint32(omx.IndexParamPortDefinition), unsafe.Pointer(d), true

	case *omx.VideoBitrate:
		b := &videoBitrate{
			portIndex:     uint32(p.Port),
			controlRate:   uint32(p.ControlRate),
			targetBitrate: p.TargetBitrate,
		}
		b.size, b.version = uint32(unsafe.Sizeof(*b)), specVersion
		return uint32(omx.IndexParamVideoBitrate), unsafe.Pointer(b), true

	case *omx.AVCTiming:
		v := &avcVuiProperty{
			portIndex:             uint32(p.Port),
			timeScale:             p.TimeScale,
			numUnitsInTick:        p.NumUnitsInTick,
			fixedFrameRateFlag:    omxBool(p.FixedFrameRate),
			timingInfoPresentFlag: omxBool(p.TimingInfoPresent),
		}
		v.size, v.version = uint32(unsafe.Sizeof(*v)), specVersion
		return uint32(omx.IndexVendorAVCTiming), unsafe.Pointer(v), true
	}
	return 0, nil, false
}

// Copy a C structure filled in by GetParameter back into p.
func unmarshalParam(p omx.Param, ptr unsafe.Pointer) {
	switch p := p.(type) {
	case *omx.PortDefinition:
		d := (*portDefinition)(ptr)
		*p = omx.PortDefinition{
			Port:              omx.PortIndex(d.portIndex),
			Direction:         omx.Direction(d.dir),
			BufferCountActual: d.bufferCountActual,
			BufferCountMin:    d.bufferCountMin,
			BufferSize:        d.bufferSize,
			Enabled:           boolOf(d.enabled),
			Populated:         boolOf(d.populated),
			Domain:            omx.Domain(d.domain),
			BufferAlignment:   d.bufferAlignment,
			Video: omx.VideoFormat{
				FrameWidth:  d.video.frameWidth,
				FrameHeight: d.video.frameHeight,
				Stride:      d.video.stride,
				SliceHeight: d.video.sliceHeight,
				Bitrate:     d.video.bitrate,
				Framerate:   d.video.framerate,
				Compression: omx.Coding(d.video.compressionFormat),
				Color:       omx.ColorFormat(d.video.colorFormat),
			},
		}

	case *omx.VideoBitrate:
		b := (*videoBitrate)(ptr)
		p.Port = omx.PortIndex(b.portIndex)
		p.ControlRate = omx.ControlRate(b.controlRate)
		p.TargetBitrate = b.targetBitrate

	case *omx.AVCTiming:
		v := (*avcVuiProperty)(ptr)
		p.Port = omx.PortIndex(v.portIndex)
		p.TimeScale = v.timeScale
		p.NumUnitsInTick = v.numUnitsInTick
		p.FixedFrameRate = boolOf(v.fixedFrameRateFlag)
		p.TimingInfoPresent = boolOf(v.timingInfoPresentFlag)
	}
}
