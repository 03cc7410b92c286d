package omx

import (
	"context"
	"time"
)

// DefaultPollInterval is the pause between GetState polls.
const DefaultPollInterval = 10 * time.Millisecond

// WaitState blocks until the component reports state want. The protocol has
// no blocking state query, so the state is polled every interval. A zero
// timeout waits until ctx is done.
func WaitState(ctx context.Context, c Component, want State, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := c.GetState()
		if err != nil {
			log.Error("Failed to get current state of media component: %v", err)
			return NewError(ErrCommand, "wait for "+want.String(), AllPorts, err)
		}
		if state == want {
			return nil
		}
		if state == StateInvalid {
			return NewError(ErrCommand, "wait for "+want.String(), AllPorts, ErrorInvalidState)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			err := ctx.Err()
			if err == context.DeadlineExceeded {
				err = ErrTimeout
			}
			log.Error("Still in %v waiting for %v: %v", state, want, err)
			return NewError(ErrCommand, "wait for "+want.String(), AllPorts, err)
		}
	}
}

// SetState requests a transition without waiting for it.
func SetState(c Component, state State) error {
	if err := c.SendCommand(CommandStateSet, uint32(state)); err != nil {
		return NewError(ErrCommand, "request "+state.String(), AllPorts, err)
	}
	return nil
}
