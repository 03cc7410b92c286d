//go:build linux || darwin
// +build linux darwin

package omxil

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/lanikai/alohaomx/internal/omx"
)

// cHeader returns a header in memory the Go runtime does not manage, as
// the component's headers are.
func cHeader(t *testing.T) (*bufferHeader, uintptr) {
	mem, err := unix.Mmap(-1, 0, int(unsafe.Sizeof(bufferHeader{})),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Munmap(mem) })
	ptr := uintptr(unsafe.Pointer(&mem[0]))
	return headerAt(ptr), ptr
}

func skipUnlessLP64(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layouts are checked for 64-bit targets")
	}
}

func TestBufferHeaderLayout(t *testing.T) {
	skipUnlessLP64(t)
	var h bufferHeader
	assert.Equal(t, uintptr(8), unsafe.Offsetof(h.buffer))
	assert.Equal(t, uintptr(16), unsafe.Offsetof(h.allocLen))
	assert.Equal(t, uintptr(32), unsafe.Offsetof(h.appPrivate))
	assert.Equal(t, uintptr(80), unsafe.Offsetof(h.tickCount))
	assert.Equal(t, uintptr(88), unsafe.Offsetof(h.timeStamp))
	assert.Equal(t, uintptr(96), unsafe.Offsetof(h.flags))
	assert.Equal(t, uintptr(112), unsafe.Sizeof(h))
}

func TestPortDefinitionLayout(t *testing.T) {
	skipUnlessLP64(t)
	var d portDefinition
	assert.Equal(t, uintptr(40), unsafe.Offsetof(d.video))
	assert.Equal(t, uintptr(56), unsafe.Offsetof(d.video.frameWidth)+uintptr(40))
	assert.Equal(t, uintptr(64), unsafe.Sizeof(d.video))
	assert.Equal(t, uintptr(104), unsafe.Offsetof(d.buffersContiguous))
	assert.Equal(t, uintptr(112), unsafe.Sizeof(d))
}

func TestComponentTypeLayout(t *testing.T) {
	skipUnlessLP64(t)
	var vt componentType
	assert.Equal(t, uintptr(32), unsafe.Offsetof(vt.sendCommand))
	assert.Equal(t, uintptr(80), unsafe.Offsetof(vt.getState))
	assert.Equal(t, uintptr(104), unsafe.Offsetof(vt.allocateBuffer))
	assert.Equal(t, uintptr(136), unsafe.Offsetof(vt.setCallbacks))
}

func TestMarshalPortDefinition(t *testing.T) {
	def := &omx.PortDefinition{
		Port:              omx.OutputPort,
		Direction:         omx.DirOutput,
		BufferCountActual: 3,
		BufferCountMin:    2,
		BufferSize:        460800,
		Enabled:           true,
		Domain:            omx.DomainVideo,
		Video: omx.VideoFormat{
			FrameWidth:  640,
			FrameHeight: 480,
			Stride:      640,
			SliceHeight: 480,
			Color:       omx.ColorFormatYUV420SemiPlanar,
		},
	}

	index, ptr, ok := marshalParam(def)
	require.True(t, ok)
	assert.Equal(t, uint32(omx.IndexParamPortDefinition), index)

	d := (*portDefinition)(ptr)
	assert.Equal(t, uint32(unsafe.Sizeof(*d)), d.size)
	assert.Equal(t, uint32(specVersion), d.version)
	assert.Equal(t, uint32(omxTrue), d.enabled)
	assert.Equal(t, uint32(21), d.video.colorFormat)

	// The component rounds the count up.
	d.bufferCountActual = 4
	var got omx.PortDefinition
	unmarshalParam(&got, ptr)
	assert.Equal(t, uint32(4), got.BufferCountActual)
	assert.Equal(t, def.Video, got.Video)
	assert.True(t, got.Enabled)
	assert.False(t, got.Populated)
}

func TestMarshalAVCTiming(t *testing.T) {
	index, ptr, ok := marshalParam(&omx.AVCTiming{
		Port:              omx.OutputPort,
		TimeScale:         60,
		NumUnitsInTick:    1,
		FixedFrameRate:    true,
		TimingInfoPresent: true,
	})
	require.True(t, ok)
	assert.Equal(t, uint32(omx.IndexVendorAVCTiming), index)

	v := (*avcVuiProperty)(ptr)
	assert.Equal(t, uint32(60), v.timeScale)
	assert.Equal(t, uint32(omxTrue), v.fixedFrameRateFlag)

	c := &component{core: &Core{opts: Options{AVCTimingIndex: DefaultAVCTimingIndex}}}
	assert.Equal(t, uint32(DefaultAVCTimingIndex), c.vendorIndex(index))
	assert.Equal(t, uint32(omx.IndexParamVideoBitrate), c.vendorIndex(uint32(omx.IndexParamVideoBitrate)))
}

func TestEventTranslation(t *testing.T) {
	var events []omx.Event
	c := &component{
		handler: omx.EventHandlerFunc(func(ev omx.Event) { events = append(events, ev) }),
		headers: make(map[uintptr]*omx.BufferHeader),
	}
	c.appData = register(c)
	defer unregister(c.appData)

	h, ptr := cHeader(t)
	h.filledLen = 7
	h.flags = uint32(omx.FlagEOS)
	h.timeStamp = 33333
	buf := &omx.BufferHeader{Private: ptr}
	c.headers[ptr] = buf

	eventHandler(0, c.appData, eventCmdComplete, uint32(omx.CommandStateSet), uint32(omx.StateIdle), 0)
	eventHandler(0, c.appData, eventPortSettingsChanged, 1, uint32(omx.IndexParamPortDefinition), 0)
	eventHandler(0, c.appData, eventMark, 0, 0, 0)
	fillBufferDone(0, c.appData, ptr)

	require.Len(t, events, 3)
	assert.Equal(t, omx.CommandComplete{Command: omx.CommandStateSet, Data: uint32(omx.StateIdle)}, events[0])
	assert.Equal(t, omx.PortSettingsChanged{Port: omx.OutputPort, Index: omx.IndexParamPortDefinition}, events[1])
	assert.Equal(t, omx.BufferFilled{Buffer: buf}, events[2])
	assert.Equal(t, uint32(7), buf.FilledLen)
	assert.True(t, buf.Flags.Has(omx.FlagEOS))
	assert.Equal(t, int64(33333), buf.Timestamp)

	// Unknown headers and stale application data are refused.
	assert.NotZero(t, emptyBufferDone(0, c.appData, ptr+1))
	assert.NotZero(t, eventHandler(0, c.appData+1000, eventError, 0, 0, 0))
	assert.Len(t, events, 3)
}

func TestSubmitSyncsHeader(t *testing.T) {
	c := &component{headers: make(map[uintptr]*omx.BufferHeader)}
	h, ptr := cHeader(t)
	buf := &omx.BufferHeader{FilledLen: 5, Flags: omx.FlagEndOfFrame, Timestamp: 1000, Private: ptr}
	c.headers[ptr] = buf

	got, ok := c.header(buf)
	require.True(t, ok)
	syncToC(headerAt(got), buf)
	assert.Equal(t, uint32(5), h.filledLen)
	assert.Equal(t, uint32(omx.FlagEndOfFrame), h.flags)
	assert.Equal(t, int64(1000), h.timeStamp)

	_, ok = c.header(&omx.BufferHeader{Private: ptr})
	assert.False(t, ok)
	_, ok = c.header(&omx.BufferHeader{})
	assert.False(t, ok)
}

func TestOpenMissingLibrary(t *testing.T) {
	_, err := Open(Options{Library: "/nonexistent/libomxr_core.so"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load /nonexistent/libomxr_core.so")
}
