package omxtest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohaomx/internal/omx"
	"github.com/lanikai/alohaomx/internal/omx/omxtest"
)

func waitFor(t *testing.T, events <-chan omx.Event, match func(omx.Event) bool) omx.Event {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
			return nil
		}
	}
}

func TestSubmissionAfterEOSReturned(t *testing.T) {
	events := make(chan omx.Event, 64)
	c := omxtest.New(omx.EventHandlerFunc(func(ev omx.Event) { events <- ev }), omxtest.Options{})
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, omx.SetState(c, omx.StateIdle))
	in, err := omx.Allocate(c, omx.InputPort)
	require.NoError(t, err)
	out, err := omx.Allocate(c, omx.OutputPort)
	require.NoError(t, err)
	require.NoError(t, omx.WaitState(ctx, c, omx.StateIdle, time.Millisecond, time.Second))
	require.NoError(t, omx.SetState(c, omx.StateExecuting))
	require.NoError(t, omx.WaitState(ctx, c, omx.StateExecuting, time.Millisecond, time.Second))

	eos := in.Buffers[0]
	eos.Flags = omx.FlagEOS
	require.NoError(t, c.EmptyThisBuffer(eos))
	require.NoError(t, c.FillThisBuffer(out.Buffers[0]))
	waitFor(t, events, func(ev omx.Event) bool {
		_, ok := ev.(omx.BufferFlag)
		return ok
	})

	// The application has not seen EOS yet and hands the buffer back.
	buf := out.Buffers[0]
	buf.FilledLen = 7
	require.NoError(t, c.FillThisBuffer(buf))
	ev := waitFor(t, events, func(ev omx.Event) bool {
		filled, ok := ev.(omx.BufferFilled)
		return ok && filled.Buffer == buf
	})
	assert.Equal(t, uint32(0), ev.(omx.BufferFilled).Buffer.FilledLen)

	st := c.Stats()
	assert.Equal(t, 1, st.LateSubmissions)
	assert.Equal(t, 0, st.FramesProduced)
	assert.Empty(t, st.Violations)
}
