package alohaomx

import (
	"context"
	"time"

	"github.com/lanikai/alohaomx/internal/omx"
)

// A gate is a single-producer, single-waiter signal. Posting an already
// posted gate is a no-op, so a phase observes at most one pending post.
type gate chan struct{}

func newGate() gate {
	return make(gate, 1)
}

func (g gate) post() {
	select {
	case g <- struct{}{}:
	default:
	}
}

// clear discards a stale post left over from an earlier phase.
func (g gate) clear() {
	select {
	case <-g:
	default:
	}
}

// wait blocks until the gate is posted, fatal is signalled, ctx is done or
// timeout (if non-zero) expires.
func (g gate) wait(ctx context.Context, fatal <-chan struct{}, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-g:
		return nil
	case <-fatal:
		return errFatal
	case <-expired:
		return omx.ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
