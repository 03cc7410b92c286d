package omxtest

import (
	"github.com/lanikai/alohaomx/internal/omx"
)

func (c *Component) run() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case <-c.kick:
		}

		// Keep stepping until the component has nothing more to do, so a
		// single kick drains every queued buffer.
		for {
			c.mu.Lock()
			evs := c.step()
			c.mu.Unlock()
			if len(evs) == 0 {
				break
			}
			for _, ev := range evs {
				select {
				case <-c.quit:
					return
				default:
				}
				c.handler.HandleEvent(ev)
			}
		}
	}
}

// step advances the simulation by one unit of work and returns the events it
// produced. It runs with c.mu held; events are delivered after unlocking.
func (c *Component) step() []omx.Event {
	if c.closed {
		return nil
	}
	if evs := c.stepState(); len(evs) > 0 {
		return evs
	}
	if evs := c.stepPorts(); len(evs) > 0 {
		return evs
	}
	if c.state == omx.StateExecuting && c.pending == nil {
		return c.stepCodec()
	}
	return nil
}

func returned(idx omx.PortIndex, buf *omx.BufferHeader) omx.Event {
	if idx == omx.InputPort {
		return omx.BufferDrained{Buffer: buf}
	}
	buf.FilledLen = 0
	buf.Offset = 0
	return omx.BufferFilled{Buffer: buf}
}

func (c *Component) stepState() []omx.Event {
	if c.pending == nil {
		return nil
	}
	to := *c.pending
	var evs []omx.Event

	switch {
	case c.state == omx.StateLoaded && to == omx.StateIdle:
		for _, pt := range c.ports {
			if pt.def.Enabled && uint32(pt.live()) < pt.def.BufferCountActual {
				return nil
			}
		}
	case c.state == omx.StateIdle && to == omx.StateLoaded:
		for _, pt := range c.ports {
			if pt.live() > 0 {
				return nil
			}
		}
	case to == omx.StateIdle:
		for idx, pt := range c.ports {
			for len(pt.queue) > 0 {
				evs = append(evs, returned(omx.PortIndex(idx), pt.pop()))
			}
		}
	}

	c.state = to
	c.pending = nil
	for _, pt := range c.ports {
		pt.def.Populated = pt.def.Enabled && uint32(pt.live()) == pt.def.BufferCountActual
	}
	if c.silent[omx.CommandStateSet] {
		c.signal()
		return evs
	}
	log.Debug("Component entered %v", to)
	return append(evs, omx.CommandComplete{Command: omx.CommandStateSet, Data: uint32(to)})
}

func (c *Component) stepPorts() []omx.Event {
	for idx, pt := range c.ports {
		idx := omx.PortIndex(idx)
		switch {
		case pt.disabling:
			if len(pt.queue) > 0 {
				var evs []omx.Event
				for len(pt.queue) > 0 {
					evs = append(evs, returned(idx, pt.pop()))
				}
				return evs
			}
			if pt.live() > 0 {
				continue
			}
			pt.disabling = false
			pt.def.Enabled = false
			pt.def.Populated = false
			if c.silent[omx.CommandPortDisable] {
				continue
			}
			return []omx.Event{omx.CommandComplete{Command: omx.CommandPortDisable, Data: uint32(idx)}}

		case pt.enabling:
			if c.state != omx.StateLoaded && uint32(pt.live()) < pt.def.BufferCountActual {
				continue
			}
			pt.enabling = false
			pt.def.Enabled = true
			pt.def.Populated = c.state != omx.StateLoaded
			if idx == omx.OutputPort {
				c.awaitingReconfig = false
			}
			if c.silent[omx.CommandPortEnable] {
				continue
			}
			return []omx.Event{omx.CommandComplete{Command: omx.CommandPortEnable, Data: uint32(idx)}}
		}
	}
	return nil
}

func (c *Component) stepCodec() []omx.Event {
	in, out := c.ports[omx.InputPort], c.ports[omx.OutputPort]

	// Once EOS is out, buffers the application submitted before seeing it
	// come straight back untouched.
	if c.eosSignaled {
		var evs []omx.Event
		for idx, pt := range c.ports {
			for len(pt.queue) > 0 {
				evs = append(evs, returned(omx.PortIndex(idx), pt.pop()))
			}
		}
		return evs
	}

	if !in.def.Enabled || in.disabling || len(in.queue) == 0 {
		return nil
	}

	if r := c.opts.Reconfigure; r != nil && !c.settingsRaised && c.stats.FramesProduced >= r.AfterFrames {
		c.settingsRaised = true
		c.awaitingReconfig = true
		c.stats.SettingsChanges++
		if r.BufferSize != 0 {
			out.def.BufferSize = r.BufferSize
		}
		if r.BufferCount != 0 {
			out.def.BufferCountActual = r.BufferCount
			if out.def.BufferCountMin > r.BufferCount {
				out.def.BufferCountMin = r.BufferCount
			}
		}
		if r.Width != 0 {
			out.def.Video.FrameWidth = r.Width
			out.def.Video.Stride = int32(omx.Stride(r.Width))
		}
		if r.Height != 0 {
			out.def.Video.FrameHeight = r.Height
			out.def.Video.SliceHeight = omx.SliceHeight(r.Height)
		}
		log.Debug("Output port settings changed: %d x %d bytes", out.def.BufferCountActual, out.def.BufferSize)
		return []omx.Event{omx.PortSettingsChanged{Port: omx.OutputPort, Index: omx.IndexParamPortDefinition}}
	}

	if c.awaitingReconfig || !out.def.Enabled || out.disabling || len(out.queue) == 0 {
		return nil
	}

	if c.opts.ErrorAfterFrames > 0 && c.stats.FramesProduced == c.opts.ErrorAfterFrames {
		// Raised once; processing continues afterwards.
		c.opts.ErrorAfterFrames = 0
		return []omx.Event{omx.ErrorRaised{Code: c.opts.ErrorCode}}
	}

	src := in.pop()
	dst := out.pop()
	payload := src.Payload()
	eos := src.Flags.Has(omx.FlagEOS)

	dst.Offset = 0
	dst.Timestamp = src.Timestamp
	if len(payload) == 0 && eos {
		dst.FilledLen = 0
		dst.Flags = omx.FlagEOS
		c.eosSignaled = true
		return []omx.Event{
			omx.BufferDrained{Buffer: src},
			omx.BufferFilled{Buffer: dst},
			omx.BufferFlag{Port: omx.OutputPort, Flags: omx.FlagEOS},
		}
	}

	frame := c.opts.Transform(payload)
	dst.FilledLen = uint32(copy(dst.Data, frame))
	dst.Flags = omx.FlagEndOfFrame
	c.stats.FramesProduced++

	evs := []omx.Event{omx.BufferDrained{Buffer: src}, omx.BufferFilled{Buffer: dst}}
	if eos {
		dst.Flags |= omx.FlagEOS
		c.eosSignaled = true
		evs = append(evs, omx.BufferFlag{Port: omx.OutputPort, Flags: omx.FlagEOS})
	}
	return evs
}
