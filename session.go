//////////////////////////////////////////////////////////////////////////////
//
// Session drives one OpenMAX IL video component from Loaded to Executing and
// back, exchanging buffers between an upstream source and a downstream sink.
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package alohaomx

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lanikai/alohaomx/internal/logging"
	"github.com/lanikai/alohaomx/internal/media"
	"github.com/lanikai/alohaomx/internal/omx"
)

var log = logging.DefaultLogger.WithTag("alohaomx")

type Session struct {
	// Short identifier prefixed to every log message of this session.
	ID string

	cfg  Config
	core omx.Core
	src  media.PayloadSource
	sink io.Writer
	log  *logging.Logger

	comp    omx.Component
	in, out *omx.Pool

	// Shared with the component's callback goroutine.
	streamEnded   atomic.Bool
	reconfiguring atomic.Bool

	streamEnd       gate
	portDisabled    gate
	portEnabled     gate
	settingsChanged gate

	queue    eventQueue
	pumpDone chan struct{}

	fatal     chan struct{}
	fatalOnce sync.Once
	fatalErr  error

	// Owned by the pump goroutine.
	owners        ledger
	inputDone     bool
	runtimeErrors int

	mu    sync.Mutex
	stats Stats

	ran atomic.Bool
}

// Stats counts what a session did.
type Stats struct {
	InputSubmitted  int
	OutputSubmitted int
	FramesWritten   int
	BytesWritten    int64

	// Output port reconfigurations completed, the output buffers held by
	// the component when each disable was requested, and those released
	// as the component returned them.
	Reconfigurations      int
	OutstandingAtDisable  int
	ReleasedDuringDisable int

	// Submissions made up to the moment stream end was observed. Nothing
	// is submitted afterwards, so this ends equal to InputSubmitted plus
	// OutputSubmitted.
	SubmittedAtEnd int

	RuntimeErrors int
	Teardowns     int
}

// NewSession prepares a session. Nothing touches the component until Run.
func NewSession(core omx.Core, cfg Config, src media.PayloadSource, sink io.Writer) *Session {
	id := uuid.New().String()[:8]
	return &Session{
		ID:              id,
		cfg:             cfg.withDefaults(),
		core:            core,
		src:             src,
		sink:            sink,
		log:             log.WithPrefix(id),
		streamEnd:       newGate(),
		portDisabled:    newGate(),
		portEnabled:     newGate(),
		settingsChanged: newGate(),
		queue:           eventQueue{notify: make(chan struct{}, 1)},
		pumpDone:        make(chan struct{}),
		fatal:           make(chan struct{}),
		owners:          ledger{},
	}
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) count(f func(*Stats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

// Run opens the component and streams the source through it to the sink
// until end of stream, then tears everything down. On failure every buffer
// and the component handle are released before the error is returned. Run
// may be called once.
func (s *Session) Run(ctx context.Context) error {
	if s.ran.Swap(true) {
		return ErrAlreadyRun
	}

	quit := make(chan struct{})
	go s.pump(quit)
	defer func() {
		close(quit)
		<-s.pumpDone
	}()

	s.log.Info("Opening %v %s", s.cfg.Role, s.cfg.ComponentName)
	comp, err := s.core.GetHandle(s.cfg.ComponentName, s)
	if err != nil {
		s.log.Error("Failed to get handle of %s: %v", s.cfg.ComponentName, err)
		return omx.NewError(ErrConfig, "get handle", omx.AllPorts, err)
	}
	s.comp = comp

	if err := s.run(ctx); err != nil {
		err = s.cause(err)
		s.log.Error("Aborting: %v", err)
		s.fail(err)
		s.abort()
		return err
	}
	return nil
}

func (s *Session) run(ctx context.Context) error {
	if err := s.configure(); err != nil {
		return err
	}

	// Buffers must be allocated while Loaded→Idle is pending.
	if err := omx.SetState(s.comp, omx.StateIdle); err != nil {
		return err
	}
	var err error
	if s.in, err = omx.Allocate(s.comp, omx.InputPort); err != nil {
		return err
	}
	if s.out, err = omx.Allocate(s.comp, omx.OutputPort); err != nil {
		return err
	}
	s.onPump(func() {
		s.owners.add(s.in.Buffers)
		s.owners.add(s.out.Buffers)
	})
	if err := s.waitState(ctx, omx.StateIdle); err != nil {
		return err
	}

	if err := omx.SetState(s.comp, omx.StateExecuting); err != nil {
		return err
	}
	if err := s.waitState(ctx, omx.StateExecuting); err != nil {
		return err
	}

	if err := s.call(s.prime); err != nil {
		return err
	}
	if err := s.loop(ctx); err != nil {
		return err
	}
	return s.teardown(ctx)
}

// configure sets buffer counts and formats of both ports while Loaded.
func (s *Session) configure() error {
	c := s.comp
	if err := omx.SetBufferCount(c, omx.InputPort, s.cfg.InputBuffers); err != nil {
		return err
	}
	if err := omx.SetBufferCount(c, omx.OutputPort, s.cfg.OutputBuffers); err != nil {
		return err
	}

	switch s.cfg.Role {
	case Decoder:
		if err := omx.SetOutputColorFormat(c, s.cfg.OutputColorFormat); err != nil {
			return err
		}
	case Encoder:
		if err := omx.SetInputFrameFormat(c, s.cfg.Width, s.cfg.Height, s.cfg.InputColorFormat); err != nil {
			return err
		}
		if err := omx.SetOutputCompression(c, omx.CodingAVC); err != nil {
			return err
		}
		if err := omx.SetBitrate(c, omx.OutputPort, s.cfg.Bitrate, omx.ControlRateConstant); err != nil {
			return err
		}
		if err := omx.SetFrameRate(c, omx.OutputPort, s.cfg.FrameRate); err != nil {
			s.log.Warn("Frame rate not applied: %v", err)
		}
	}

	for _, port := range []omx.PortIndex{omx.InputPort, omx.OutputPort} {
		def, err := omx.GetPort(c, port)
		if err != nil {
			return err
		}
		s.log.Debug("%v port: %d x %d bytes (min %d)", port, def.BufferCountActual, def.BufferSize, def.BufferCountMin)
	}
	return nil
}

// prime submits every output buffer for filling, then feeds the input
// buffers until the source runs dry.
func (s *Session) prime() error {
	for _, buf := range s.out.Buffers {
		if err := s.fill(buf); err != nil {
			return err
		}
	}
	for _, buf := range s.in.Buffers {
		if err := s.feed(buf); err != nil {
			return err
		}
	}
	return nil
}

// loop waits for end of stream, handling output port reconfigurations on
// the way.
func (s *Session) loop(ctx context.Context) error {
	var expired <-chan time.Time
	if s.cfg.StreamTimeout > 0 {
		t := time.NewTimer(s.cfg.StreamTimeout)
		defer t.Stop()
		expired = t.C
	}

	for {
		select {
		case <-s.settingsChanged:
			if s.streamEnded.Load() {
				s.log.Debug("Ignoring port settings change after end of stream")
				continue
			}
			if err := s.reconfigure(ctx); err != nil {
				return err
			}
		case <-s.streamEnd:
			s.log.Info("End of stream")
			return nil
		case <-s.fatal:
			return errFatal
		case <-expired:
			return omx.NewError(ErrCommand, "wait for end of stream", omx.AllPorts, omx.ErrTimeout)
		case <-ctx.Done():
			return omx.NewError(ErrCommand, "wait for end of stream", omx.AllPorts, ctx.Err())
		}
	}
}

// teardown takes the component from Executing back to Loaded, frees every
// buffer and closes the handle.
func (s *Session) teardown(ctx context.Context) error {
	if !s.streamEnded.Load() {
		return omx.NewError(ErrCommand, "stop", omx.AllPorts, errStreamActive)
	}

	if err := omx.SetState(s.comp, omx.StateIdle); err != nil {
		return err
	}
	if err := s.waitState(ctx, omx.StateIdle); err != nil {
		return err
	}
	s.barrier()

	if err := omx.SetState(s.comp, omx.StateLoaded); err != nil {
		return err
	}
	if err := s.freeBuffers(); err != nil {
		return err
	}
	if err := s.waitState(ctx, omx.StateLoaded); err != nil {
		return err
	}

	err := s.closeHandle()
	s.count(func(st *Stats) { st.Teardowns++ })
	s.log.Info("Stopped")
	return err
}

// abort releases everything Run acquired, on a best-effort basis.
func (s *Session) abort() {
	if s.comp == nil {
		return
	}

	ctx := context.Background()
	state, err := s.comp.GetState()
	if err != nil {
		s.log.Warn("Failed to get state during abort: %v", err)
	}

	if state == omx.StateExecuting || state == omx.StatePause {
		if err := omx.SetState(s.comp, omx.StateIdle); err != nil {
			s.log.Warn("%v", err)
		} else if err := s.waitState(ctx, omx.StateIdle); err != nil {
			s.log.Warn("%v", err)
		} else {
			state = omx.StateIdle
		}
	}
	s.barrier()

	unload := state == omx.StateIdle
	if unload {
		if err := omx.SetState(s.comp, omx.StateLoaded); err != nil {
			s.log.Warn("%v", err)
			unload = false
		}
	}
	if err := s.freeBuffers(); err != nil {
		s.log.Warn("%v", err)
	}
	if unload {
		if err := s.waitState(ctx, omx.StateLoaded); err != nil {
			s.log.Warn("%v", err)
		}
	}

	if err := s.closeHandle(); err != nil {
		s.log.Warn("%v", err)
	}
}

// barrier waits until the component has returned every buffer, so that
// freeing them is legal. After CommandTimeout it gives up.
func (s *Session) barrier() {
	deadline := time.Now().Add(s.cfg.CommandTimeout)
	for {
		var held int
		s.onPump(func() {
			held = s.owners.held(omx.AllPorts)
		})
		if held == 0 {
			return
		}
		if time.Now().After(deadline) {
			s.log.Warn("Component still holds %d buffers, freeing anyway", held)
			return
		}
		time.Sleep(s.cfg.PollInterval)
	}
}

// freeBuffers frees both pools, output first, sizing each from the current
// port definition.
func (s *Session) freeBuffers() error {
	var first error
	for _, p := range []*omx.Pool{s.out, s.in} {
		if p == nil {
			continue
		}
		s.onPump(func() {
			s.owners.remove(p.Buffers...)
		})
		if err := p.DeallocateAll(s.comp); err != nil && first == nil {
			first = err
		}
		if n := p.Live(); n > 0 {
			// The definition shrank since this pool was allocated.
			s.log.Warn("%d buffers of %v port outlived the port definition", n, p.Port)
			if err := p.Deallocate(s.comp, p.Len()); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func (s *Session) closeHandle() error {
	comp := s.comp
	s.comp = nil
	if err := comp.Close(); err != nil {
		return omx.NewError(ErrCommand, "close", omx.AllPorts, err)
	}
	return nil
}

func (s *Session) waitState(ctx context.Context, state omx.State) error {
	return omx.WaitState(ctx, s.comp, state, s.cfg.PollInterval, s.cfg.CommandTimeout)
}

// fail records the first fatal error and wakes the orchestration goroutine.
func (s *Session) fail(err error) {
	s.fatalOnce.Do(func() {
		s.fatalErr = err
		close(s.fatal)
	})
}

func (s *Session) failed() bool {
	select {
	case <-s.fatal:
		return true
	default:
		return false
	}
}

// cause replaces the errFatal placeholder with the error that caused it.
func (s *Session) cause(err error) error {
	if err == errFatal {
		return s.fatalErr
	}
	return err
}
