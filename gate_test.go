package alohaomx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lanikai/alohaomx/internal/omx"
)

func TestGatePostIsIdempotent(t *testing.T) {
	g := newGate()
	fatal := make(chan struct{})

	g.post()
	g.post()
	assert.NoError(t, g.wait(context.Background(), fatal, time.Millisecond))
	assert.Equal(t, omx.ErrTimeout, g.wait(context.Background(), fatal, time.Millisecond))
}

func TestGateClear(t *testing.T) {
	g := newGate()
	g.post()
	g.clear()
	g.clear()
	assert.Len(t, g, 0)
}

func TestGateWaitUnblocksOnFatal(t *testing.T) {
	g := newGate()
	fatal := make(chan struct{})
	close(fatal)
	assert.Equal(t, errFatal, g.wait(context.Background(), fatal, 0))
}

func TestGateWaitCanceled(t *testing.T) {
	g := newGate()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, g.wait(ctx, make(chan struct{}), 0))
}

func TestGatePostFromOtherGoroutine(t *testing.T) {
	g := newGate()
	go func() {
		time.Sleep(5 * time.Millisecond)
		g.post()
	}()
	assert.NoError(t, g.wait(context.Background(), make(chan struct{}), time.Second))
}

func TestConfigDefaults(t *testing.T) {
	dec := Config{}.withDefaults()
	assert.Equal(t, DecoderName, dec.ComponentName)
	assert.Equal(t, uint32(2), dec.InputBuffers)
	assert.Equal(t, uint32(3), dec.OutputBuffers)
	assert.Equal(t, omx.DefaultPollInterval, dec.PollInterval)
	assert.Equal(t, 5*time.Second, dec.CommandTimeout)
	assert.Equal(t, time.Duration(0), dec.StreamTimeout)
	assert.Equal(t, 8, dec.MaxRuntimeErrors)
	assert.Equal(t, -1, Config{MaxRuntimeErrors: -1}.withDefaults().MaxRuntimeErrors)

	enc := Config{Role: Encoder}.withDefaults()
	assert.Equal(t, EncoderName, enc.ComponentName)
	assert.Equal(t, uint32(2), enc.OutputBuffers)
	assert.Equal(t, uint32(5000000), enc.Bitrate)
	assert.Equal(t, 640*480*3/2, enc.FrameSize())
}
