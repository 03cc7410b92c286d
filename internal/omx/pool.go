package omx

import (
	"sync"

	errors "golang.org/x/xerrors"
)

// Pool is the fixed set of buffers backing one port, allocated in a single
// batch from the port definition in force at allocation time. Each buffer is
// freed at most once, whichever of Release, Deallocate or DeallocateAll gets
// to it first.
type Pool struct {
	Port    PortIndex
	Buffers []*BufferHeader

	mu    sync.Mutex
	freed []bool
}

// Allocate re-queries the port definition and allocates BufferCountActual
// buffers of BufferSize bytes in component-owned memory. If any allocation
// fails, every buffer allocated so far is freed before the error returns.
func Allocate(c Component, port PortIndex) (*Pool, error) {
	def, err := GetPort(c, port)
	if err != nil {
		return nil, NewError(ErrAlloc, "allocate buffers", port, err)
	}

	p := &Pool{
		Port:    port,
		Buffers: make([]*BufferHeader, 0, def.BufferCountActual),
	}
	for i := uint32(0); i < def.BufferCountActual; i++ {
		buf, err := c.AllocateBuffer(port, def.BufferSize)
		if err != nil {
			log.Error("Failed to allocate buffer %d of %d on %v port: %v", i, def.BufferCountActual, port, err)
			p.freed = make([]bool, len(p.Buffers))
			if ferr := p.Deallocate(c, len(p.Buffers)); ferr != nil {
				log.Error("Rollback of %d buffers on %v port incomplete: %v", len(p.Buffers), port, ferr)
				err = errors.Errorf("rollback incomplete (%v): %w", ferr, err)
			}
			return nil, NewError(ErrAlloc, "allocate buffers", port, err)
		}
		p.Buffers = append(p.Buffers, buf)
	}
	p.freed = make([]bool, len(p.Buffers))

	log.Debug("Allocated %d x %d bytes on %v port", len(p.Buffers), def.BufferSize, port)
	return p, nil
}

// Len is the number of buffers in the pool, freed or not.
func (p *Pool) Len() int {
	return len(p.Buffers)
}

// Index returns the slot of buf in the pool, or -1 if buf does not belong
// to it.
func (p *Pool) Index(buf *BufferHeader) int {
	for i, b := range p.Buffers {
		if b == buf {
			return i
		}
	}
	return -1
}

// Live counts buffers not yet freed.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, f := range p.freed {
		if !f {
			n++
		}
	}
	return n
}

// Freed reports whether buf has already been returned to the component.
func (p *Pool) Freed(buf *BufferHeader) bool {
	i := p.Index(buf)
	if i < 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freed[i]
}

// Release frees a single buffer, e.g. one returned while its port is being
// disabled.
func (p *Pool) Release(c Component, buf *BufferHeader) error {
	i := p.Index(buf)
	if i < 0 {
		return NewError(ErrProtocol, "release buffer", p.Port, errForeignBuffer)
	}
	return p.free(c, i)
}

// Deallocate frees the first n buffers of the pool.
func (p *Pool) Deallocate(c Component, n int) error {
	if n > len(p.Buffers) {
		n = len(p.Buffers)
	}
	var first error
	for i := 0; i < n; i++ {
		if err := p.free(c, i); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// DeallocateAll frees as many buffers as the port currently declares. Use it
// when the definition seen at allocation time may be stale.
func (p *Pool) DeallocateAll(c Component) error {
	n := len(p.Buffers)
	if def, err := GetPort(c, p.Port); err != nil {
		log.Warn("Freeing all %d buffers of %v port without a port definition", n, p.Port)
	} else if int(def.BufferCountActual) != n {
		log.Warn("%v port declares %d buffers, pool holds %d", p.Port, def.BufferCountActual, n)
		if int(def.BufferCountActual) < n {
			n = int(def.BufferCountActual)
		}
	}
	return p.Deallocate(c, n)
}

func (p *Pool) free(c Component, i int) error {
	p.mu.Lock()
	if p.freed[i] {
		p.mu.Unlock()
		log.Debug("Buffer %d of %v port already freed", i, p.Port)
		return nil
	}
	p.freed[i] = true
	p.mu.Unlock()

	if err := c.FreeBuffer(p.Port, p.Buffers[i]); err != nil {
		log.Warn("Failed to free buffer %d of %v port: %v", i, p.Port, err)
		return NewError(ErrAlloc, "free buffer", p.Port, err)
	}
	return nil
}
