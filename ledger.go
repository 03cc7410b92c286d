package alohaomx

import (
	errors "golang.org/x/xerrors"

	"github.com/lanikai/alohaomx/internal/omx"
)

type owner int

const (
	ownerApp owner = iota
	ownerComponent
)

func (o owner) String() string {
	if o == ownerComponent {
		return "component"
	}
	return "application"
}

// ledger records who owns each allocated buffer. Ownership flips exactly
// once per submit and once per return. It is only touched on the pump
// goroutine.
type ledger map[*omx.BufferHeader]owner

func (l ledger) add(bufs []*omx.BufferHeader) {
	for _, buf := range bufs {
		l[buf] = ownerApp
	}
}

func (l ledger) remove(bufs ...*omx.BufferHeader) {
	for _, buf := range bufs {
		delete(l, buf)
	}
}

// give hands buf to the component.
func (l ledger) give(buf *omx.BufferHeader) error {
	o, ok := l[buf]
	if !ok {
		return errors.Errorf("submit of unknown buffer %p", buf)
	}
	if o != ownerApp {
		return errors.Errorf("submit of buffer %p owned by %v", buf, o)
	}
	l[buf] = ownerComponent
	return nil
}

// take returns buf to the application.
func (l ledger) take(buf *omx.BufferHeader) error {
	o, ok := l[buf]
	if !ok {
		return errors.Errorf("return of unknown buffer %p: %w", buf, ErrNotOwned)
	}
	if o != ownerComponent {
		return errors.Errorf("return of buffer %p: %w", buf, ErrNotOwned)
	}
	l[buf] = ownerApp
	return nil
}

// held counts buffers owned by the component, on port or on all ports.
func (l ledger) held(port omx.PortIndex) int {
	n := 0
	for buf, o := range l {
		if o == ownerComponent && (port == omx.AllPorts || buf.Port == port) {
			n++
		}
	}
	return n
}
