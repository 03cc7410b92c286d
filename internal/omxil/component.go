//go:build linux || darwin
// +build linux darwin

package omxil

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/lanikai/alohaomx/internal/omx"
)

// component wraps an OMX_HANDLETYPE. Methods call through the component's
// function table.
type component struct {
	core    *Core
	handler omx.EventHandler
	appData uintptr

	handle uintptr
	vt     *componentType

	// Application header for each component header, keyed by address.
	mu      sync.Mutex
	headers map[uintptr]*omx.BufferHeader
}

// Invoke a function table entry. Every entry takes the handle first and
// returns OMX_ERRORTYPE.
func (c *component) invoke(fn uintptr, args ...uintptr) error {
	r1, _, _ := purego.SyscallN(fn, append([]uintptr{c.handle}, args...)...)
	if code := omx.ErrorCode(uint32(r1)); code != omx.ErrorNone {
		return code
	}
	return nil
}

func (c *component) vendorIndex(index uint32) uint32 {
	if index == uint32(omx.IndexVendorAVCTiming) {
		return c.core.opts.AVCTimingIndex
	}
	return index
}

func (c *component) GetParameter(p omx.Param) error {
	index, ptr, ok := marshalParam(p)
	if !ok {
		return omx.ErrorUnsupportedIndex
	}
	err := c.invoke(c.vt.getParameter, uintptr(c.vendorIndex(index)), uintptr(ptr))
	if err == nil {
		unmarshalParam(p, ptr)
	}
	runtime.KeepAlive(ptr)
	return err
}

func (c *component) SetParameter(p omx.Param) error {
	index, ptr, ok := marshalParam(p)
	if !ok {
		return omx.ErrorUnsupportedIndex
	}
	err := c.invoke(c.vt.setParameter, uintptr(c.vendorIndex(index)), uintptr(ptr))
	runtime.KeepAlive(ptr)
	return err
}

func (c *component) SendCommand(cmd omx.Command, param uint32) error {
	return c.invoke(c.vt.sendCommand, uintptr(cmd), uintptr(param), 0)
}

func (c *component) GetState() (omx.State, error) {
	state := new(uint32)
	err := c.invoke(c.vt.getState, uintptr(unsafe.Pointer(state)))
	return omx.State(*state), err
}

func (c *component) AllocateBuffer(port omx.PortIndex, size uint32) (*omx.BufferHeader, error) {
	ptr := new(uintptr)
	err := c.invoke(c.vt.allocateBuffer, uintptr(unsafe.Pointer(ptr)), uintptr(port), 0, uintptr(size))
	if err != nil {
		return nil, err
	}

	h := headerAt(*ptr)
	buf := &omx.BufferHeader{
		Data:    unsafe.Slice((*byte)(unsafe.Pointer(h.buffer)), h.allocLen),
		Port:    port,
		Private: *ptr,
	}
	syncFromC(buf, h)

	c.mu.Lock()
	c.headers[*ptr] = buf
	c.mu.Unlock()
	return buf, nil
}

func (c *component) FreeBuffer(port omx.PortIndex, buf *omx.BufferHeader) error {
	ptr, ok := c.header(buf)
	if !ok {
		return omx.ErrorBadParameter
	}
	if err := c.invoke(c.vt.freeBuffer, uintptr(port), ptr); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.headers, ptr)
	c.mu.Unlock()
	buf.Data = nil
	return nil
}

func (c *component) EmptyThisBuffer(buf *omx.BufferHeader) error {
	return c.submit(c.vt.emptyThisBuffer, buf)
}

func (c *component) FillThisBuffer(buf *omx.BufferHeader) error {
	return c.submit(c.vt.fillThisBuffer, buf)
}

func (c *component) submit(fn uintptr, buf *omx.BufferHeader) error {
	ptr, ok := c.header(buf)
	if !ok {
		return omx.ErrorBadParameter
	}
	syncToC(headerAt(ptr), buf)
	return c.invoke(fn, ptr)
}

// Close calls OMX_FreeHandle.
func (c *component) Close() error {
	c.mu.Lock()
	if n := len(c.headers); n > 0 {
		log.Warn("Freeing handle %#x with %d buffers allocated", c.handle, n)
	}
	c.mu.Unlock()

	ret := omxFreeHandle(c.handle)
	unregister(c.appData)
	c.core.released()
	if ret != 0 {
		return omx.ErrorCode(ret)
	}
	return nil
}

func (c *component) header(buf *omx.BufferHeader) (uintptr, bool) {
	ptr, ok := buf.Private.(uintptr)
	if !ok {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return ptr, c.headers[ptr] == buf
}

// Map a header returned through a callback to its application header and
// refresh the latter.
func (c *component) returned(ptr uintptr) *omx.BufferHeader {
	c.mu.Lock()
	buf := c.headers[ptr]
	c.mu.Unlock()
	if buf != nil {
		syncFromC(buf, headerAt(ptr))
	}
	return buf
}
