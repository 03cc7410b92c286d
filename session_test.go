package alohaomx

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errors "golang.org/x/xerrors"

	"github.com/lanikai/alohaomx/internal/media"
	"github.com/lanikai/alohaomx/internal/omx"
	"github.com/lanikai/alohaomx/internal/omx/omxtest"
)

// sliceSource yields each payload once, then io.EOF. A nil payload is
// returned as an empty one.
type sliceSource struct {
	payloads [][]byte
	reads    int
	endless  bool
}

func (s *sliceSource) ReadPayload() (media.Payload, error) {
	s.reads++
	if s.endless {
		return media.Payload{Data: []byte{0, 0, 1, 0x65}, EndOfFrame: true}, nil
	}
	if len(s.payloads) == 0 {
		return media.Payload{}, io.EOF
	}
	p := s.payloads[0]
	s.payloads = s.payloads[1:]
	return media.Payload{Data: p, EndOfFrame: true, Timestamp: time.Duration(s.reads) * time.Millisecond}, nil
}

func (s *sliceSource) Close() error {
	return nil
}

type failingSink struct{}

func (failingSink) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func testConfig() Config {
	return Config{
		PollInterval:   time.Millisecond,
		CommandTimeout: time.Second,
		StreamTimeout:  5 * time.Second,
	}
}

func assertNoLeaks(t *testing.T, c *omxtest.Component) {
	t.Helper()
	st := c.Stats()
	assert.Equal(t, 0, c.Live(omx.InputPort), "input buffers leaked")
	assert.Equal(t, 0, c.Live(omx.OutputPort), "output buffers leaked")
	assert.Equal(t, st.Allocations, st.Frees, "allocations and frees differ")
	assert.Equal(t, 0, st.LeakedAtClose)
	assert.Empty(t, st.Violations)

	_, err := c.GetState()
	assert.Error(t, err, "handle not closed")
}

// assertQuietAfterEnd checks that nothing was submitted once the session
// observed end of stream.
func assertQuietAfterEnd(t *testing.T, s *Session) {
	t.Helper()
	st := s.Stats()
	assert.Equal(t, st.InputSubmitted+st.OutputSubmitted, st.SubmittedAtEnd, "submitted after end of stream")
}

func TestScenarioTwoAccessUnits(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{})
	src := &sliceSource{payloads: [][]byte{[]byte("access unit one"), []byte("access unit two")}}
	var sink bytes.Buffer

	cfg := testConfig()
	cfg.InputBuffers = 2
	cfg.OutputBuffers = 3
	s := NewSession(core, cfg, src, &sink)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, "access unit oneaccess unit two", sink.String())
	st := s.Stats()
	assert.Equal(t, 2, st.FramesWritten)
	assert.Equal(t, 1, st.Teardowns)
	assert.Equal(t, 3, st.InputSubmitted) // two access units and the EOS buffer
	assert.Equal(t, 0, st.Reconfigurations)

	comp := core.Last()
	assertNoLeaks(t, comp)
	assertQuietAfterEnd(t, s)
	assert.Equal(t, 2, comp.Stats().FramesProduced)
	assert.Equal(t, 5, comp.Stats().Allocations)
}

func TestScenarioImmediateEndOfInput(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{})
	src := &sliceSource{}
	var sink bytes.Buffer

	cfg := testConfig()
	cfg.InputBuffers = 1
	s := NewSession(core, cfg, src, &sink)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 0, sink.Len())
	assert.Equal(t, 1, src.reads)

	comp := core.Last()
	st := comp.Stats()
	require.Len(t, st.EmptiedBuffers, 1)
	assert.Equal(t, uint32(0), st.EmptiedBuffers[0].FilledLen)
	assert.Equal(t, omx.FlagEOS, st.EmptiedBuffers[0].Flags)
	assert.Equal(t, 0, st.FramesProduced)
	assert.Equal(t, 1, s.Stats().Teardowns)
	assertNoLeaks(t, comp)
	assertQuietAfterEnd(t, s)
}

func TestScenarioSettingsChanged(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{
		Reconfigure: &omxtest.Reconfigure{
			AfterFrames: 1,
			BufferCount: 4,
			BufferSize:  128 * 1024,
			Width:       1920,
			Height:      1080,
		},
	})
	src := &sliceSource{payloads: [][]byte{[]byte("one "), []byte("two "), []byte("three")}}
	var sink bytes.Buffer

	s := NewSession(core, testConfig(), src, &sink)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, "one two three", sink.String())

	st := s.Stats()
	assert.Equal(t, 1, st.Reconfigurations)
	assert.Equal(t, 3, st.FramesWritten)
	assert.Equal(t, st.OutstandingAtDisable, st.ReleasedDuringDisable)

	comp := core.Last()
	assert.Equal(t, 1, comp.Stats().SettingsChanges)
	// Two input buffers, three old and four new output buffers.
	assert.Equal(t, 9, comp.Stats().Allocations)
	assertNoLeaks(t, comp)
	assertQuietAfterEnd(t, s)
}

func TestEncoder(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{})
	frame := make([]byte, 64*48*3/2)
	src := &sliceSource{payloads: [][]byte{frame, frame, frame}}
	var sink bytes.Buffer

	cfg := testConfig()
	cfg.Role = Encoder
	cfg.Width = 64
	cfg.Height = 48
	cfg.Bitrate = 1000000
	cfg.FrameRate = 25
	s := NewSession(core, cfg, src, &sink)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 3*len(frame), sink.Len())
	assert.Equal(t, len(frame), cfg.FrameSize())

	comp := core.Last()
	assert.Equal(t, uint32(1000000), comp.Bitrate().TargetBitrate)
	assert.Equal(t, omx.ControlRateConstant, comp.Bitrate().ControlRate)
	require.NotNil(t, comp.Timing())
	assert.Equal(t, uint32(50), comp.Timing().TimeScale)
	assertNoLeaks(t, comp)
	assertQuietAfterEnd(t, s)
}

func TestEncoderWithoutVendorTiming(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{NoVendorTiming: true})
	frame := make([]byte, 64*48*3/2)
	cfg := testConfig()
	cfg.Role = Encoder
	cfg.Width = 64
	cfg.Height = 48

	s := NewSession(core, cfg, &sliceSource{payloads: [][]byte{frame}}, ioutil.Discard)
	require.NoError(t, s.Run(context.Background()))
	assert.Nil(t, core.Last().Timing())
	assertNoLeaks(t, core.Last())
	assertQuietAfterEnd(t, s)
}

func TestRunOnce(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{})
	s := NewSession(core, testConfig(), &sliceSource{}, ioutil.Discard)
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, ErrAlreadyRun, s.Run(context.Background()))
}

func TestAbortBelowMinimum(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{OutputCountMin: 4})
	s := NewSession(core, testConfig(), &sliceSource{}, ioutil.Discard)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.True(t, errors.Is(err, omx.ErrBelowMinimum))
	assertNoLeaks(t, core.Last())
	assert.Equal(t, 0, core.Last().Stats().Allocations)
}

func TestAbortParametersRejected(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{RejectParameters: true})
	s := NewSession(core, testConfig(), &sliceSource{}, ioutil.Discard)

	err := s.Run(context.Background())
	assert.True(t, errors.Is(err, ErrConfig))
	assertNoLeaks(t, core.Last())
}

func TestAbortAllocationFailure(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{
		FailAllocation: map[omx.PortIndex]int{omx.OutputPort: 2},
	})
	s := NewSession(core, testConfig(), &sliceSource{}, ioutil.Discard)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlloc))
	assert.False(t, errors.Is(err, ErrConfig))

	comp := core.Last()
	assertNoLeaks(t, comp)
	assert.Equal(t, 0, comp.Stats().EmptyCalls)
	assert.Equal(t, 0, comp.Stats().FillCalls)
}

func TestAbortUnknownComponent(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{})
	cfg := testConfig()
	cfg.ComponentName = ""
	s := NewSession(core, cfg, &sliceSource{}, ioutil.Discard)
	// An empty name falls back to the decoder.
	assert.Equal(t, DecoderName, s.cfg.ComponentName)

	s.cfg.ComponentName = ""
	err := s.Run(context.Background())
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Nil(t, core.Last())
}

func TestAbortSevereRuntimeError(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{
		ErrorAfterFrames: 1,
		ErrorCode:        omx.ErrorHardware,
	})
	src := &sliceSource{payloads: [][]byte{[]byte("a"), []byte("b"), []byte("c")}}
	s := NewSession(core, testConfig(), src, ioutil.Discard)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRuntime))
	code, ok := omx.AsErrorCode(err)
	assert.True(t, ok)
	assert.Equal(t, omx.ErrorHardware, code)
	assert.Equal(t, 0, s.Stats().Teardowns)
	assertNoLeaks(t, core.Last())
}

func TestRecoverableRuntimeError(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{
		ErrorAfterFrames: 1,
		ErrorCode:        omx.ErrorStreamCorrupt,
	})
	src := &sliceSource{payloads: [][]byte{[]byte("a"), []byte("b")}}
	var sink bytes.Buffer
	s := NewSession(core, testConfig(), src, &sink)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, "ab", sink.String())
	assert.Equal(t, 1, s.Stats().RuntimeErrors)
	assertNoLeaks(t, core.Last())
}

func TestAbortSinkFailure(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{})
	src := &sliceSource{payloads: [][]byte{[]byte("a"), []byte("b")}}
	s := NewSession(core, testConfig(), src, failingSink{})

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRuntime))
	assertNoLeaks(t, core.Last())
}

func TestAbortDisableNeverConfirmed(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{
		Reconfigure:    &omxtest.Reconfigure{AfterFrames: 1},
		SilentCommands: []omx.Command{omx.CommandPortDisable},
	})
	src := &sliceSource{payloads: [][]byte{[]byte("a"), []byte("b")}}
	cfg := testConfig()
	cfg.CommandTimeout = 100 * time.Millisecond
	s := NewSession(core, cfg, src, ioutil.Discard)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommand))
	assert.True(t, errors.Is(err, omx.ErrTimeout))
	assertNoLeaks(t, core.Last())
}

func TestAbortPortDisableRejected(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{
		Reconfigure:    &omxtest.Reconfigure{AfterFrames: 1},
		RejectCommands: []omx.Command{omx.CommandPortDisable},
	})
	src := &sliceSource{payloads: [][]byte{[]byte("a"), []byte("b")}}
	s := NewSession(core, testConfig(), src, ioutil.Discard)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommand))
	assertNoLeaks(t, core.Last())
}

func TestAbortStreamTimeout(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{})
	cfg := testConfig()
	cfg.StreamTimeout = 50 * time.Millisecond
	s := NewSession(core, cfg, &sliceSource{endless: true}, ioutil.Discard)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommand))
	assert.True(t, errors.Is(err, omx.ErrTimeout))
	assertNoLeaks(t, core.Last())
}

func TestAbortCanceled(t *testing.T) {
	core := omxtest.NewCore(omxtest.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	s := NewSession(core, testConfig(), &sliceSource{endless: true}, ioutil.Discard)
	err := s.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assertNoLeaks(t, core.Last())
}
