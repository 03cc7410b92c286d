package omx_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errors "golang.org/x/xerrors"

	"github.com/lanikai/alohaomx/internal/omx"
	"github.com/lanikai/alohaomx/internal/omx/omxtest"
)

func newComponent(t *testing.T, opts omxtest.Options) *omxtest.Component {
	c := omxtest.New(omx.EventHandlerFunc(func(omx.Event) {}), opts)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetBufferCountBelowMinimum(t *testing.T) {
	c := newComponent(t, omxtest.Options{OutputCountMin: 3})

	err := omx.SetBufferCount(c, omx.OutputPort, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, omx.ErrConfig))
	assert.True(t, errors.Is(err, omx.ErrBelowMinimum))

	def, err := omx.GetPort(c, omx.OutputPort)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), def.BufferCountActual)

	err = omx.SetBufferCount(c, omx.OutputPort, 0)
	assert.True(t, errors.Is(err, omx.ErrBelowMinimum))
}

func TestSetBufferCount(t *testing.T) {
	c := newComponent(t, omxtest.Options{InputCountMin: 2})

	require.NoError(t, omx.SetBufferCount(c, omx.InputPort, 4))
	def, err := omx.GetPort(c, omx.InputPort)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), def.BufferCountActual)
	assert.Equal(t, uint32(2), def.BufferCountMin)
}

func TestSetParameterRejected(t *testing.T) {
	c := newComponent(t, omxtest.Options{RejectParameters: true})

	err := omx.SetBufferCount(c, omx.InputPort, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, omx.ErrConfig))
	assert.True(t, errors.Is(err, omx.ErrSetRejected))

	code, ok := omx.AsErrorCode(err)
	assert.True(t, ok)
	assert.Equal(t, omx.ErrorBadParameter, code)
}

func TestSetInputFrameFormat(t *testing.T) {
	c := newComponent(t, omxtest.Options{})

	require.NoError(t, omx.SetInputFrameFormat(c, 1270, 719, omx.ColorFormatYUV420SemiPlanar))
	def, err := omx.GetPort(c, omx.InputPort)
	require.NoError(t, err)
	assert.Equal(t, uint32(1270), def.Video.FrameWidth)
	assert.Equal(t, int32(1280), def.Video.Stride)
	assert.Equal(t, uint32(720), def.Video.SliceHeight)
	assert.Equal(t, uint32(1280*720*3/2), def.BufferSize)
}

func TestSetBitrateAndFrameRate(t *testing.T) {
	c := newComponent(t, omxtest.Options{})

	require.NoError(t, omx.SetBitrate(c, omx.OutputPort, 2000000, omx.ControlRateConstant))
	assert.Equal(t, omx.VideoBitrate{
		Port:          omx.OutputPort,
		ControlRate:   omx.ControlRateConstant,
		TargetBitrate: 2000000,
	}, c.Bitrate())

	require.NoError(t, omx.SetFrameRate(c, omx.OutputPort, 30))
	timing := c.Timing()
	require.NotNil(t, timing)
	assert.Equal(t, uint32(60), timing.TimeScale)
	assert.Equal(t, uint32(1), timing.NumUnitsInTick)
	assert.True(t, timing.FixedFrameRate)
}

func TestSetFrameRateUnsupported(t *testing.T) {
	c := newComponent(t, omxtest.Options{NoVendorTiming: true})

	err := omx.SetFrameRate(c, omx.OutputPort, 30)
	assert.True(t, errors.Is(err, omx.ErrSetRejected))
	assert.True(t, errors.Is(err, omx.ErrConfig))
}

func TestAllocateRollback(t *testing.T) {
	c := newComponent(t, omxtest.Options{
		InputCountMin:  3,
		FailAllocation: map[omx.PortIndex]int{omx.InputPort: 3},
	})
	require.NoError(t, omx.SetState(c, omx.StateIdle))

	pool, err := omx.Allocate(c, omx.InputPort)
	assert.Nil(t, pool)
	require.Error(t, err)
	assert.True(t, errors.Is(err, omx.ErrAlloc))

	stats := c.Stats()
	assert.Equal(t, 2, stats.Allocations)
	assert.Equal(t, 2, stats.Frees)
	assert.Equal(t, 0, c.Live(omx.InputPort))
}

// stuckFrees refuses to free any buffer.
type stuckFrees struct {
	*omxtest.Component
}

func (stuckFrees) FreeBuffer(omx.PortIndex, *omx.BufferHeader) error {
	return omx.ErrorIncorrectStateOperation
}

func TestAllocateRollbackFailure(t *testing.T) {
	c := newComponent(t, omxtest.Options{
		InputCountMin:  2,
		FailAllocation: map[omx.PortIndex]int{omx.InputPort: 2},
	})
	require.NoError(t, omx.SetState(c, omx.StateIdle))

	pool, err := omx.Allocate(stuckFrees{c}, omx.InputPort)
	assert.Nil(t, pool)
	require.Error(t, err)
	assert.True(t, errors.Is(err, omx.ErrAlloc))
	assert.Contains(t, err.Error(), "rollback incomplete")

	code, ok := omx.AsErrorCode(err)
	assert.True(t, ok)
	assert.Equal(t, omx.ErrorInsufficientResources, code)
}

func TestPoolFreesOnce(t *testing.T) {
	c := newComponent(t, omxtest.Options{InputCountMin: 2, OutputCountMin: 2})
	require.NoError(t, omx.SetState(c, omx.StateIdle))

	in, err := omx.Allocate(c, omx.InputPort)
	require.NoError(t, err)
	out, err := omx.Allocate(c, omx.OutputPort)
	require.NoError(t, err)
	assert.Equal(t, 2, in.Len())
	assert.Equal(t, 2, in.Live())

	buf := in.Buffers[0]
	require.NoError(t, in.Release(c, buf))
	require.NoError(t, in.Release(c, buf))
	assert.True(t, in.Freed(buf))
	assert.Equal(t, 1, in.Live())
	assert.Equal(t, 1, c.Live(omx.InputPort))

	err = in.Release(c, out.Buffers[0])
	assert.True(t, errors.Is(err, omx.ErrProtocol))

	require.NoError(t, in.DeallocateAll(c))
	require.NoError(t, out.DeallocateAll(c))
	assert.Equal(t, 0, c.Live(omx.InputPort))
	assert.Equal(t, 0, c.Live(omx.OutputPort))
	assert.Equal(t, 4, c.Stats().Frees)
	assert.Empty(t, c.Stats().Violations)
}

func TestWaitState(t *testing.T) {
	c := newComponent(t, omxtest.Options{})
	ctx := context.Background()

	require.NoError(t, omx.SetState(c, omx.StateIdle))
	in, err := omx.Allocate(c, omx.InputPort)
	require.NoError(t, err)
	out, err := omx.Allocate(c, omx.OutputPort)
	require.NoError(t, err)
	require.NoError(t, omx.WaitState(ctx, c, omx.StateIdle, time.Millisecond, time.Second))

	require.NoError(t, omx.SetState(c, omx.StateExecuting))
	require.NoError(t, omx.WaitState(ctx, c, omx.StateExecuting, time.Millisecond, time.Second))

	require.NoError(t, omx.SetState(c, omx.StateIdle))
	require.NoError(t, omx.WaitState(ctx, c, omx.StateIdle, time.Millisecond, time.Second))

	require.NoError(t, omx.SetState(c, omx.StateLoaded))
	require.NoError(t, in.DeallocateAll(c))
	require.NoError(t, out.DeallocateAll(c))
	require.NoError(t, omx.WaitState(ctx, c, omx.StateLoaded, time.Millisecond, time.Second))
}

func TestWaitStateTimeout(t *testing.T) {
	c := newComponent(t, omxtest.Options{SilentCommands: []omx.Command{omx.CommandStateSet}})

	// Never populated, so the transition never completes.
	require.NoError(t, omx.SetState(c, omx.StateIdle))

	start := time.Now()
	err := omx.WaitState(context.Background(), c, omx.StateIdle, time.Millisecond, 30*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, omx.ErrCommand))
	assert.True(t, errors.Is(err, omx.ErrTimeout))
	assert.True(t, time.Since(start) >= 30*time.Millisecond)
}

func TestSetStateRejected(t *testing.T) {
	c := newComponent(t, omxtest.Options{})

	err := omx.SetState(c, omx.StateLoaded)
	require.Error(t, err)
	assert.True(t, errors.Is(err, omx.ErrCommand))
	code, _ := omx.AsErrorCode(err)
	assert.Equal(t, omx.ErrorSameState, code)
}

func TestBufferPayloadClamped(t *testing.T) {
	buf := &omx.BufferHeader{Data: make([]byte, 8), Offset: 2, FilledLen: 10}
	assert.Len(t, buf.Payload(), 6)

	buf.Offset = 9
	assert.Nil(t, buf.Payload())

	buf.Flags = omx.FlagEOS | omx.FlagEndOfFrame
	assert.Equal(t, "EOS|ENDOFFRAME", buf.Flags.String())
	buf.Reset()
	assert.Equal(t, omx.BufferFlags(0), buf.Flags)
	assert.Equal(t, uint32(0), buf.FilledLen)
}
