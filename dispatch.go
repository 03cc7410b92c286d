package alohaomx

import (
	"io"
	"sync"
	"time"

	"github.com/lanikai/alohaomx/internal/omx"
)

// eventQueue is an unbounded FIFO between the component's callback
// goroutine and the pump. Pushing never blocks.
type eventQueue struct {
	mu     sync.Mutex
	items  []interface{}
	notify chan struct{}
}

func (q *eventQueue) push(item interface{}) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// pumpCall runs fn on the pump, in order with component events.
type pumpCall struct {
	fn   func()
	done chan struct{}
}

// HandleEvent implements omx.EventHandler. It only queues the event, so the
// component's callback goroutine is never blocked by sink or source I/O.
func (s *Session) HandleEvent(ev omx.Event) {
	s.queue.push(ev)
}

// pump is the only goroutine that reacts to events and the only one that
// submits buffers.
func (s *Session) pump(quit <-chan struct{}) {
	defer close(s.pumpDone)
	for {
		select {
		case <-s.queue.notify:
		case <-quit:
			return
		}
		for _, item := range s.queue.drain() {
			switch v := item.(type) {
			case omx.Event:
				s.dispatch(v)
			case *pumpCall:
				v.fn()
				close(v.done)
			}
		}
	}
}

// onPump runs fn on the pump goroutine and waits for it to finish.
func (s *Session) onPump(fn func()) {
	c := &pumpCall{fn: fn, done: make(chan struct{})}
	s.queue.push(c)
	<-c.done
}

func (s *Session) call(fn func() error) error {
	var err error
	s.onPump(func() {
		err = fn()
	})
	return err
}

// dispatch is one step of the exchange state machine.
func (s *Session) dispatch(ev omx.Event) {
	s.log.Trace(2, "Event: %v", ev)

	switch ev := ev.(type) {
	case omx.CommandComplete:
		s.onCommandComplete(ev)

	case omx.PortSettingsChanged:
		if ev.Port != omx.OutputPort {
			s.log.Warn("Ignoring settings change on %v port", ev.Port)
			return
		}
		s.log.Info("Output port settings changed")
		s.settingsChanged.post()

	case omx.BufferFlag:
		if ev.Flags.Has(omx.FlagEOS) {
			s.endStream(ev.Port)
		}

	case omx.ErrorRaised:
		s.onError(ev)

	case omx.BufferDrained:
		s.onBufferDrained(ev.Buffer)

	case omx.BufferFilled:
		s.onBufferFilled(ev.Buffer)
	}
}

func (s *Session) onCommandComplete(ev omx.CommandComplete) {
	switch ev.Command {
	case omx.CommandStateSet:
		s.log.Debug("Component entered %v", omx.State(ev.Data))
	case omx.CommandPortDisable:
		if omx.PortIndex(ev.Data) == omx.OutputPort {
			s.portDisabled.post()
		}
	case omx.CommandPortEnable:
		if omx.PortIndex(ev.Data) == omx.OutputPort {
			s.portEnabled.post()
		}
	default:
		s.log.Debug("%v", ev)
	}
}

func (s *Session) onError(ev omx.ErrorRaised) {
	s.runtimeErrors++
	s.count(func(st *Stats) { st.RuntimeErrors++ })

	err := omx.NewError(ErrRuntime, "component reported", omx.AllPorts, ev.Code)
	switch {
	case ev.Code.Severe():
		s.log.Error("Component error 0x%x (%v)", uint32(ev.Code), ev.Code)
		s.fail(err)
	case s.cfg.StrictRuntimeErrors,
		s.cfg.MaxRuntimeErrors >= 0 && s.runtimeErrors > s.cfg.MaxRuntimeErrors:
		s.log.Error("Component error 0x%x (%v), %d so far", uint32(ev.Code), ev.Code, s.runtimeErrors)
		s.fail(err)
	default:
		s.log.Warn("Component error 0x%x (%v)", uint32(ev.Code), ev.Code)
	}
}

// endStream marks the stream as ended before posting the gate, so the
// orchestration goroutine never observes the post without the flag.
func (s *Session) endStream(port omx.PortIndex) {
	if !s.streamEnded.Swap(true) {
		s.log.Info("EOS on %v port", port)
		s.count(func(st *Stats) { st.SubmittedAtEnd = st.InputSubmitted + st.OutputSubmitted })
	}
	s.streamEnd.post()
}

func (s *Session) onBufferDrained(buf *omx.BufferHeader) {
	if err := s.owners.take(buf); err != nil {
		s.log.Error("Protocol violation: %v", err)
		s.fail(omx.NewError(ErrProtocol, "empty buffer done", omx.InputPort, err))
		return
	}
	if err := s.feed(buf); err != nil {
		s.fail(err)
	}
}

func (s *Session) onBufferFilled(buf *omx.BufferHeader) {
	if err := s.owners.take(buf); err != nil {
		s.log.Error("Protocol violation: %v", err)
		s.fail(omx.NewError(ErrProtocol, "fill buffer done", omx.OutputPort, err))
		return
	}

	if s.reconfiguring.Load() {
		// The port is being disabled; whatever the buffer holds belongs to
		// the old format.
		if err := s.release(buf); err != nil {
			s.fail(err)
			return
		}
		s.count(func(st *Stats) { st.ReleasedDuringDisable++ })
		return
	}

	if payload := buf.Payload(); len(payload) > 0 && !s.failed() {
		if _, err := s.sink.Write(payload); err != nil {
			s.log.Error("Failed to write %d bytes: %v", len(payload), err)
			s.fail(omx.NewError(ErrRuntime, "write output", omx.OutputPort, err))
			return
		}
		s.count(func(st *Stats) {
			st.FramesWritten++
			st.BytesWritten += int64(len(payload))
		})
	}

	eos := buf.Flags.Has(omx.FlagEOS)
	buf.Reset()
	if eos {
		s.endStream(omx.OutputPort)
	}
	if err := s.fill(buf); err != nil {
		s.fail(err)
	}
}

// feed refills an input buffer from the source and submits it. End of input,
// an upstream failure or a payload that does not fit all become an empty
// EOS buffer, after which the input side is retired.
func (s *Session) feed(buf *omx.BufferHeader) error {
	if s.inputDone || s.streamEnded.Load() || s.failed() {
		return nil
	}

	p, err := s.src.ReadPayload()
	buf.Reset()
	switch {
	case err == io.EOF:
		s.log.Info("End of input")
	case err != nil:
		s.log.Warn("Treating source failure as end of input: %v", err)
	case len(p.Data) == 0:
		s.log.Info("Empty payload, end of input")
	case len(p.Data) > len(buf.Data):
		s.log.Warn("Treating %d byte payload as end of input, buffers hold %d", len(p.Data), len(buf.Data))
	default:
		buf.FilledLen = uint32(copy(buf.Data, p.Data))
		if p.EndOfFrame {
			buf.Flags = omx.FlagEndOfFrame
		}
		buf.Timestamp = int64(p.Timestamp / time.Microsecond)
		return s.empty(buf)
	}

	buf.Flags = omx.FlagEOS
	s.inputDone = true
	return s.empty(buf)
}

// empty submits an input buffer for draining.
func (s *Session) empty(buf *omx.BufferHeader) error {
	if s.streamEnded.Load() {
		return nil
	}
	if err := s.owners.give(buf); err != nil {
		return omx.NewError(ErrProtocol, "empty buffer", omx.InputPort, err)
	}
	if err := s.comp.EmptyThisBuffer(buf); err != nil {
		s.owners.take(buf)
		s.log.Error("Failed to empty buffer: %v", err)
		return omx.NewError(ErrCommand, "empty buffer", omx.InputPort, err)
	}
	s.count(func(st *Stats) { st.InputSubmitted++ })
	return nil
}

// fill submits an output buffer for filling, unless the stream has ended,
// the run has failed or the port is being reconfigured.
func (s *Session) fill(buf *omx.BufferHeader) error {
	if s.streamEnded.Load() || s.failed() || s.reconfiguring.Load() {
		return nil
	}
	if err := s.owners.give(buf); err != nil {
		return omx.NewError(ErrProtocol, "fill buffer", omx.OutputPort, err)
	}
	if err := s.comp.FillThisBuffer(buf); err != nil {
		s.owners.take(buf)
		s.log.Error("Failed to fill buffer: %v", err)
		return omx.NewError(ErrCommand, "fill buffer", omx.OutputPort, err)
	}
	s.count(func(st *Stats) { st.OutputSubmitted++ })
	return nil
}

// release frees an output buffer of the current pool.
func (s *Session) release(buf *omx.BufferHeader) error {
	s.owners.remove(buf)
	return s.out.Release(s.comp, buf)
}
