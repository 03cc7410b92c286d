package alohaomx

import (
	"context"

	"github.com/lanikai/alohaomx/internal/omx"
)

// reconfigure rebuilds the output pool after the component renegotiated the
// output port: disable, release every old buffer, enable with a new pool,
// then resume filling. Any failure is fatal to the run.
func (s *Session) reconfigure(ctx context.Context) error {
	s.log.Info("Reconfiguring output port")
	s.portDisabled.clear()
	s.portEnabled.clear()

	// Steady → Disabling. The marker is raised before the command goes out,
	// so every filled buffer from here on is released rather than
	// resubmitted.
	err := s.call(func() error {
		s.reconfiguring.Store(true)
		held := s.owners.held(omx.OutputPort)
		s.count(func(st *Stats) { st.OutstandingAtDisable += held })

		if err := s.comp.SendCommand(omx.CommandPortDisable, uint32(omx.OutputPort)); err != nil {
			s.log.Error("Failed to disable output port: %v", err)
			return omx.NewError(ErrCommand, "disable", omx.OutputPort, err)
		}
		return s.sweep()
	})
	if err != nil {
		return err
	}

	// Disabling → Disabled.
	if err := s.portDisabled.wait(ctx, s.fatal, s.cfg.CommandTimeout); err != nil {
		return s.gateError("wait for disable", err)
	}
	if err := s.call(s.sweep); err != nil {
		return err
	}
	if s.out.Live() > 0 {
		return omx.NewError(ErrProtocol, "disable", omx.OutputPort, ErrNotOwned)
	}

	// Disabled → Reallocating → Enabling. The component accepts
	// AllocateBuffer only on a port that is being enabled.
	if err := s.comp.SendCommand(omx.CommandPortEnable, uint32(omx.OutputPort)); err != nil {
		s.log.Error("Failed to enable output port: %v", err)
		return omx.NewError(ErrCommand, "enable", omx.OutputPort, err)
	}
	pool, err := omx.Allocate(s.comp, omx.OutputPort)
	if err != nil {
		return err
	}
	s.onPump(func() {
		s.out = pool
		s.owners.add(pool.Buffers)
	})

	// Enabling → Steady.
	if err := s.portEnabled.wait(ctx, s.fatal, s.cfg.CommandTimeout); err != nil {
		return s.gateError("wait for enable", err)
	}
	err = s.call(func() error {
		s.reconfiguring.Store(false)
		for _, buf := range s.out.Buffers {
			if err := s.fill(buf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.count(func(st *Stats) { st.Reconfigurations++ })
	s.log.Info("Output port reconfigured: %d buffers", pool.Len())
	return nil
}

// sweep releases output buffers of the old pool that the application holds.
// Buffers still with the component are left for their fill callbacks.
func (s *Session) sweep() error {
	for _, buf := range s.out.Buffers {
		o, tracked := s.owners[buf]
		if !tracked || o != ownerApp {
			continue
		}
		if err := s.release(buf); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) gateError(op string, err error) error {
	if err == errFatal {
		return err
	}
	s.log.Error("Failed to %s of output port: %v", op, err)
	return omx.NewError(ErrCommand, op, omx.OutputPort, err)
}
