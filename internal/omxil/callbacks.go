//go:build linux || darwin
// +build linux darwin

package omxil

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/lanikai/alohaomx/internal/omx"
)

// The callback table handed to every component. purego callbacks are a
// limited resource, so the three trampolines are shared and demultiplexed on
// the application data pointer.
var (
	callbacks     callbackType
	callbacksOnce sync.Once

	componentsMu sync.RWMutex
	components   = make(map[uintptr]*component)
	lastAppData  uintptr
)

func initCallbacks() {
	callbacksOnce.Do(func() {
		callbacks.eventHandler = purego.NewCallback(eventHandler)
		callbacks.emptyBufferDone = purego.NewCallback(emptyBufferDone)
		callbacks.fillBufferDone = purego.NewCallback(fillBufferDone)
	})
}

func register(c *component) uintptr {
	componentsMu.Lock()
	defer componentsMu.Unlock()
	lastAppData++
	components[lastAppData] = c
	return lastAppData
}

func unregister(appData uintptr) {
	componentsMu.Lock()
	delete(components, appData)
	componentsMu.Unlock()
}

func lookup(appData uintptr) *component {
	componentsMu.RLock()
	defer componentsMu.RUnlock()
	return components[appData]
}

// OMX_CALLBACKTYPE.EventHandler
func eventHandler(handle, appData uintptr, event, data1, data2 uint32, eventData uintptr) uintptr {
	c := lookup(appData)
	if c == nil {
		return uintptr(omx.ErrorBadParameter)
	}

	var ev omx.Event
	switch event {
	case eventCmdComplete:
		ev = omx.CommandComplete{Command: omx.Command(data1), Data: data2}
	case eventError:
		ev = omx.ErrorRaised{Code: omx.ErrorCode(data1), Data: data2}
	case eventPortSettingsChanged:
		ev = omx.PortSettingsChanged{Port: omx.PortIndex(data1), Index: omx.Index(data2)}
	case eventBufferFlag:
		ev = omx.BufferFlag{Port: omx.PortIndex(data1), Flags: omx.BufferFlags(data2)}
	default:
		log.Debug("Ignoring event %d (%#x, %#x)", event, data1, data2)
		return 0
	}
	c.handler.HandleEvent(ev)
	return 0
}

// OMX_CALLBACKTYPE.EmptyBufferDone
func emptyBufferDone(handle, appData, header uintptr) uintptr {
	c := lookup(appData)
	if c == nil {
		return uintptr(omx.ErrorBadParameter)
	}
	buf := c.returned(header)
	if buf == nil {
		log.Warn("EmptyBufferDone for unknown header %#x", header)
		return uintptr(omx.ErrorBadParameter)
	}
	c.handler.HandleEvent(omx.BufferDrained{Buffer: buf})
	return 0
}

// OMX_CALLBACKTYPE.FillBufferDone
func fillBufferDone(handle, appData, header uintptr) uintptr {
	c := lookup(appData)
	if c == nil {
		return uintptr(omx.ErrorBadParameter)
	}
	buf := c.returned(header)
	if buf == nil {
		log.Warn("FillBufferDone for unknown header %#x", header)
		return uintptr(omx.ErrorBadParameter)
	}
	c.handler.HandleEvent(omx.BufferFilled{Buffer: buf})
	return 0
}

// Copy the component's view of a header into the application's.
func syncFromC(buf *omx.BufferHeader, h *bufferHeader) {
	buf.FilledLen = h.filledLen
	buf.Offset = h.offset
	buf.Flags = omx.BufferFlags(h.flags)
	buf.Timestamp = h.timeStamp
}

// Copy the application's header fields into the component's before
// submission.
func syncToC(h *bufferHeader, buf *omx.BufferHeader) {
	h.filledLen = buf.FilledLen
	h.offset = buf.Offset
	h.flags = uint32(buf.Flags)
	h.timeStamp = buf.Timestamp
}

func headerAt(ptr uintptr) *bufferHeader {
	return (*bufferHeader)(unsafe.Pointer(ptr))
}
