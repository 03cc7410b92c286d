//go:build linux && amd64
// +build linux,amd64

package v4l2

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestIoctlNumbers(t *testing.T) {
	assert.Equal(t, uint(0xc0d05605), VIDIOC_S_FMT)
	assert.Equal(t, uint(0xc0145608), VIDIOC_REQBUFS)
	assert.Equal(t, uint(0xc0585609), VIDIOC_QUERYBUF)
	assert.Equal(t, uint(0xc058560f), VIDIOC_QBUF)
	assert.Equal(t, uint(0xc0585611), VIDIOC_DQBUF)
	assert.Equal(t, uint(0x40045612), VIDIOC_STREAMON)
	assert.Equal(t, uint(0x40045613), VIDIOC_STREAMOFF)
}

func TestBufferLayout(t *testing.T) {
	var b buffer
	assert.Equal(t, uintptr(24), unsafe.Offsetof(b.timestamp))
	assert.Equal(t, uintptr(64), unsafe.Offsetof(b.offset))
	assert.Equal(t, uintptr(72), unsafe.Offsetof(b.length))
}

func TestFourcc(t *testing.T) {
	assert.Equal(t, uint32(0x3231564e), PixelFormatNV12)
	assert.Equal(t, uint32(0x34363248), PixelFormatH264)
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open("/dev/nonexistent-video", Config{})
	assert.Error(t, err)
}
