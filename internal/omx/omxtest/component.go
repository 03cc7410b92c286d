package omxtest

import (
	"sync"

	"github.com/lanikai/alohaomx/internal/omx"
)

// Component is a simulated video codec. Every input payload becomes one
// output frame through Options.Transform; an EOS input becomes an empty EOS
// output followed by a BufferFlag event.
type Component struct {
	opts    Options
	handler omx.EventHandler

	mu       sync.Mutex
	state    omx.State
	pending  *omx.State
	ports    [2]*port
	bitrate  omx.VideoBitrate
	timing   *omx.AVCTiming
	silent   map[omx.Command]bool
	rejected map[omx.Command]bool
	stats    Stats

	settingsRaised   bool
	awaitingReconfig bool
	eosSignaled      bool
	closed           bool

	kick chan struct{}
	quit chan struct{}
	done chan struct{}
}

// New creates a component in state Loaded whose callbacks go to handler.
func New(handler omx.EventHandler, opts Options) *Component {
	opts.setDefaults()
	c := &Component{
		opts:     opts,
		handler:  handler,
		state:    omx.StateLoaded,
		silent:   map[omx.Command]bool{},
		rejected: map[omx.Command]bool{},
		kick:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, cmd := range opts.SilentCommands {
		c.silent[cmd] = true
	}
	for _, cmd := range opts.RejectCommands {
		c.rejected[cmd] = true
	}
	c.ports[omx.InputPort] = &port{
		def: omx.PortDefinition{
			Port:              omx.InputPort,
			Direction:         omx.DirInput,
			BufferCountActual: opts.InputCountMin,
			BufferCountMin:    opts.InputCountMin,
			BufferSize:        opts.InputBufferSize,
			Enabled:           true,
			Domain:            omx.DomainVideo,
		},
		slots: map[*omx.BufferHeader]*slot{},
	}
	c.ports[omx.OutputPort] = &port{
		def: omx.PortDefinition{
			Port:              omx.OutputPort,
			Direction:         omx.DirOutput,
			BufferCountActual: opts.OutputCountMin,
			BufferCountMin:    opts.OutputCountMin,
			BufferSize:        opts.OutputBufferSize,
			Enabled:           true,
			Domain:            omx.DomainVideo,
		},
		slots: map[*omx.BufferHeader]*slot{},
	}
	c.bitrate.Port = omx.OutputPort

	go c.run()
	return c
}

// Stats returns a copy of the component's counters.
func (c *Component) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Commands = append([]string(nil), c.stats.Commands...)
	s.EmptiedBuffers = append([]omx.BufferHeader(nil), c.stats.EmptiedBuffers...)
	s.Violations = append([]string(nil), c.stats.Violations...)
	return s
}

// Live returns the number of allocated, not yet freed buffers on port.
func (c *Component) Live(idx omx.PortIndex) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ports[idx].live()
}

// Timing returns the last AVCTiming set, if any.
func (c *Component) Timing() *omx.AVCTiming {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timing
}

// Bitrate returns the encoder rate control.
func (c *Component) Bitrate() omx.VideoBitrate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bitrate
}

func (c *Component) port(idx omx.PortIndex) (*port, error) {
	if idx != omx.InputPort && idx != omx.OutputPort {
		return nil, omx.ErrorBadPortIndex
	}
	return c.ports[idx], nil
}

func (c *Component) GetParameter(p omx.Param) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch v := p.(type) {
	case *omx.PortDefinition:
		pt, err := c.port(v.Port)
		if err != nil {
			return err
		}
		*v = pt.def
	case *omx.VideoBitrate:
		if v.Port != omx.OutputPort {
			return omx.ErrorBadPortIndex
		}
		*v = c.bitrate
	case *omx.AVCTiming:
		if c.opts.NoVendorTiming || c.timing == nil {
			return omx.ErrorUnsupportedIndex
		}
		*v = *c.timing
	default:
		return omx.ErrorUnsupportedIndex
	}
	return nil
}

func (c *Component) SetParameter(p omx.Param) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opts.RejectParameters {
		return omx.ErrorBadParameter
	}

	switch v := p.(type) {
	case *omx.PortDefinition:
		pt, err := c.port(v.Port)
		if err != nil {
			return err
		}
		if c.state != omx.StateLoaded && pt.def.Enabled {
			return omx.ErrorIncorrectStateOperation
		}
		if v.BufferCountActual < pt.def.BufferCountMin {
			return omx.ErrorBadParameter
		}
		pt.def.BufferCountActual = v.BufferCountActual
		pt.def.Video = v.Video
		if v.Port == omx.InputPort && v.Video.Color != omx.ColorFormatUnused && v.Video.FrameWidth > 0 {
			// Raw 4:2:0 frames: a full luma plane plus half-size chroma.
			luma := uint32(v.Video.Stride) * v.Video.SliceHeight
			pt.def.BufferSize = luma + luma/2
		}
	case *omx.VideoBitrate:
		if v.Port != omx.OutputPort {
			return omx.ErrorBadPortIndex
		}
		c.bitrate = *v
	case *omx.AVCTiming:
		if c.opts.NoVendorTiming {
			return omx.ErrorUnsupportedIndex
		}
		t := *v
		c.timing = &t
	default:
		return omx.ErrorUnsupportedIndex
	}
	return nil
}

func (c *Component) GetState() (omx.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return omx.StateInvalid, omx.ErrorInvalidComponent
	}
	return c.state, nil
}

func validTransition(from, to omx.State) bool {
	switch from {
	case omx.StateLoaded:
		return to == omx.StateIdle || to == omx.StateWaitForResources
	case omx.StateIdle:
		return to == omx.StateLoaded || to == omx.StateExecuting || to == omx.StatePause
	case omx.StateExecuting:
		return to == omx.StateIdle || to == omx.StatePause
	case omx.StatePause:
		return to == omx.StateIdle || to == omx.StateExecuting
	}
	return false
}

func (c *Component) SendCommand(cmd omx.Command, param uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return omx.ErrorInvalidComponent
	}
	c.stats.Commands = append(c.stats.Commands, omx.CommandComplete{Command: cmd, Data: param}.String())
	if c.rejected[cmd] {
		return omx.ErrorIncorrectStateOperation
	}

	switch cmd {
	case omx.CommandStateSet:
		to := omx.State(param)
		if to == c.state {
			return omx.ErrorSameState
		}
		if c.pending != nil || !validTransition(c.state, to) {
			return omx.ErrorIncorrectStateTransition
		}
		c.pending = &to

	case omx.CommandPortDisable:
		pt, err := c.port(omx.PortIndex(param))
		if err != nil {
			return err
		}
		if !pt.def.Enabled || pt.disabling {
			return omx.ErrorIncorrectStateOperation
		}
		pt.disabling = true

	case omx.CommandPortEnable:
		pt, err := c.port(omx.PortIndex(param))
		if err != nil {
			return err
		}
		if pt.def.Enabled || pt.enabling || pt.disabling {
			return omx.ErrorIncorrectStateOperation
		}
		pt.enabling = true

	case omx.CommandFlush:
		if _, err := c.port(omx.PortIndex(param)); err != nil {
			return err
		}
		go c.flush(omx.PortIndex(param))
		return nil

	default:
		return omx.ErrorNotImplemented
	}

	c.signal()
	return nil
}

func (c *Component) AllocateBuffer(idx omx.PortIndex, size uint32) (*omx.BufferHeader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pt, err := c.port(idx)
	if err != nil {
		return nil, err
	}
	loadingToIdle := c.state == omx.StateLoaded && c.pending != nil && *c.pending == omx.StateIdle
	if !loadingToIdle && !pt.enabling {
		return nil, c.stats.violation("allocate on %v port in %v", idx, c.state)
	}
	if size < pt.def.BufferSize {
		return nil, omx.ErrorBadParameter
	}
	if uint32(pt.live()) >= pt.def.BufferCountActual {
		return nil, omx.ErrorInsufficientResources
	}

	pt.allocated++
	if n, ok := c.opts.FailAllocation[idx]; ok && pt.allocated == n {
		return nil, omx.ErrorInsufficientResources
	}

	buf := &omx.BufferHeader{
		Data:    make([]byte, size),
		Port:    idx,
		Private: pt.allocated,
	}
	pt.slots[buf] = &slot{buf: buf, owner: ownerApp}
	c.stats.Allocations++
	c.signal()
	return buf, nil
}

func (c *Component) FreeBuffer(idx omx.PortIndex, buf *omx.BufferHeader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pt, err := c.port(idx)
	if err != nil {
		return err
	}
	s, ok := pt.slots[buf]
	if !ok {
		return c.stats.violation("free of unknown buffer %p on %v port", buf, idx)
	}
	if s.owner != ownerApp {
		return c.stats.violation("free of component-owned buffer %p on %v port", buf, idx)
	}
	delete(pt.slots, buf)
	c.stats.Frees++
	c.signal()
	return nil
}

func (c *Component) EmptyThisBuffer(buf *omx.BufferHeader) error {
	return c.submit(omx.InputPort, buf)
}

func (c *Component) FillThisBuffer(buf *omx.BufferHeader) error {
	return c.submit(omx.OutputPort, buf)
}

func (c *Component) submit(idx omx.PortIndex, buf *omx.BufferHeader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pt := c.ports[idx]
	s, ok := pt.slots[buf]
	if !ok {
		return c.stats.violation("submit of unknown buffer %p on %v port", buf, idx)
	}
	if s.owner != ownerApp {
		return c.stats.violation("double submit of buffer %p on %v port", buf, idx)
	}
	if c.state != omx.StateExecuting && c.state != omx.StatePause && c.state != omx.StateIdle {
		return c.stats.violation("submit on %v port in %v", idx, c.state)
	}
	if !pt.def.Enabled || pt.disabling {
		return c.stats.violation("submit on disabled %v port", idx)
	}

	if idx == omx.InputPort {
		c.stats.EmptyCalls++
		c.stats.EmptiedBuffers = append(c.stats.EmptiedBuffers, omx.BufferHeader{
			FilledLen: buf.FilledLen,
			Offset:    buf.Offset,
			Flags:     buf.Flags,
		})
	} else {
		c.stats.FillCalls++
	}
	if c.eosSignaled {
		c.stats.LateSubmissions++
	}

	s.owner = ownerComponent
	pt.queue = append(pt.queue, buf)
	c.signal()
	return nil
}

func (c *Component) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return omx.ErrorInvalidComponent
	}
	c.closed = true
	c.stats.LeakedAtClose = c.ports[0].live() + c.ports[1].live()
	if c.stats.LeakedAtClose > 0 {
		log.Warn("Component closed with %d buffers still allocated", c.stats.LeakedAtClose)
	}
	c.mu.Unlock()

	close(c.quit)
	<-c.done
	return nil
}

func (c *Component) signal() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Component) flush(idx omx.PortIndex) {
	c.mu.Lock()
	pt := c.ports[idx]
	var evs []omx.Event
	for len(pt.queue) > 0 {
		evs = append(evs, returned(idx, pt.pop()))
	}
	evs = append(evs, omx.CommandComplete{Command: omx.CommandFlush, Data: uint32(idx)})
	c.mu.Unlock()

	for _, ev := range evs {
		c.handler.HandleEvent(ev)
	}
}
