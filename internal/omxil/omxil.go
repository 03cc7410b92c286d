//////////////////////////////////////////////////////////////////////////////
//
// OpenMAX IL core bindings
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

//go:build linux || darwin
// +build linux darwin

// Package omxil binds the vendor OpenMAX IL core library at run time, without
// cgo, and exposes its components as omx.Component.
package omxil

import (
	"os"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	errors "golang.org/x/xerrors"

	"github.com/lanikai/alohaomx/internal/logging"
	"github.com/lanikai/alohaomx/internal/omx"
)

var log = logging.DefaultLogger.WithTag("omxil")

// DefaultLibrary is the Renesas core library.
const DefaultLibrary = "libomxr_core.so"

// Index of the vendor VUI property parameter in the Renesas H.264 encoder
// extension header.
const DefaultAVCTimingIndex = 0x7F000000 + 0x0A00 + 0x21

// Options for Open.
type Options struct {
	// Library path. Defaults to $OMXIL_LIBRARY, then DefaultLibrary.
	Library string

	// Vendor index that omx.IndexVendorAVCTiming maps to.
	AVCTimingIndex uint32
}

// Core entry points, resolved once per process.
var (
	omxInit       func() uint32
	omxDeinit     func() uint32
	omxGetHandle  func(handle *uintptr, name string, appData uintptr, callbacks *callbackType) uint32
	omxFreeHandle func(handle uintptr) uint32

	loadOnce sync.Once
	loadErr  error
)

func load(path string) error {
	loadOnce.Do(func() {
		lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			loadErr = errors.Errorf("failed to load %s: %w", path, err)
			return
		}
		purego.RegisterLibFunc(&omxInit, lib, "OMX_Init")
		purego.RegisterLibFunc(&omxDeinit, lib, "OMX_Deinit")
		purego.RegisterLibFunc(&omxGetHandle, lib, "OMX_GetHandle")
		purego.RegisterLibFunc(&omxFreeHandle, lib, "OMX_FreeHandle")
		log.Debug("Loaded %s", path)
	})
	return loadErr
}

// Core is an initialized OpenMAX IL core. It implements omx.Core.
type Core struct {
	opts Options

	mu      sync.Mutex
	handles int
	closed  bool
}

// Open loads the core library and calls OMX_Init.
func Open(opts Options) (*Core, error) {
	if opts.Library == "" {
		opts.Library = os.Getenv("OMXIL_LIBRARY")
	}
	if opts.Library == "" {
		opts.Library = DefaultLibrary
	}
	if opts.AVCTimingIndex == 0 {
		opts.AVCTimingIndex = DefaultAVCTimingIndex
	}

	if err := load(opts.Library); err != nil {
		return nil, err
	}
	if ret := omxInit(); ret != 0 {
		return nil, omx.NewError(omx.ErrConfig, "OMX_Init", omx.AllPorts, omx.ErrorCode(ret))
	}
	initCallbacks()
	return &Core{opts: opts}, nil
}

// GetHandle instantiates the named component.
func (core *Core) GetHandle(name string, handler omx.EventHandler) (omx.Component, error) {
	core.mu.Lock()
	defer core.mu.Unlock()
	if core.closed {
		return nil, omx.NewError(omx.ErrConfig, "OMX_GetHandle", omx.AllPorts, omx.ErrorInvalidState)
	}

	c := &component{
		core:    core,
		handler: handler,
		headers: make(map[uintptr]*omx.BufferHeader),
	}
	c.appData = register(c)

	var handle uintptr
	if ret := omxGetHandle(&handle, name, c.appData, &callbacks); ret != 0 {
		unregister(c.appData)
		return nil, omx.NewError(omx.ErrConfig, "OMX_GetHandle "+name, omx.AllPorts, omx.ErrorCode(ret))
	}
	c.handle = handle
	c.vt = (*componentType)(unsafe.Pointer(handle))
	core.handles++
	log.Info("Component %s: handle %#x", name, handle)
	return c, nil
}

// Close calls OMX_Deinit. Every handle must have been closed first.
func (core *Core) Close() error {
	core.mu.Lock()
	defer core.mu.Unlock()
	if core.closed {
		return nil
	}
	if core.handles > 0 {
		log.Warn("Deinitializing core with %d open handles", core.handles)
	}
	core.closed = true
	if ret := omxDeinit(); ret != 0 {
		return omx.ErrorCode(ret)
	}
	return nil
}

func (core *Core) released() {
	core.mu.Lock()
	core.handles--
	core.mu.Unlock()
}
