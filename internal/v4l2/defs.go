// Video4Linux is a Linux-specific API. Only build if GOOS=linux.
//go:build linux
// +build linux

package v4l2

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// fourcc packs a V4L2 pixel format code.
func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

var (
	PixelFormatNV12 = fourcc('N', 'V', '1', '2')
	PixelFormatYUYV = fourcc('Y', 'U', 'Y', 'V')
	PixelFormatH264 = fourcc('H', '2', '6', '4')
)

const (
	bufTypeVideoCapture = 1
	memoryMmap          = 1
	fieldAny            = 0
)

// struct v4l2_requestbuffers
type requestBuffers struct {
	count    uint32
	typ      uint32
	memory   uint32
	reserved [2]uint32
}

// struct v4l2_timecode
type timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

// struct v4l2_buffer
type buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp unix.Timeval
	timecode  timecode
	sequence  uint32
	memory    uint32
	offset    uint32 // first member of the m union
	_         uint32
	length    uint32
	reserved2 uint32
	requestFD int32
}

// struct v4l2_pix_format
type pixFormat struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

// struct v4l2_format, with the fmt union viewed as a pixel format. The
// union is 8-byte aligned and 200 bytes long.
type format struct {
	typ uint32
	_   uint32
	pix pixFormat
	_   [200 - unsafe.Sizeof(pixFormat{})]byte
}

const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uint {
	return uint(dir<<30 | size<<16 | 'V'<<8 | nr)
}

var (
	VIDIOC_S_FMT     = ioc(iocRead|iocWrite, 5, unsafe.Sizeof(format{}))
	VIDIOC_REQBUFS   = ioc(iocRead|iocWrite, 8, unsafe.Sizeof(requestBuffers{}))
	VIDIOC_QUERYBUF  = ioc(iocRead|iocWrite, 9, unsafe.Sizeof(buffer{}))
	VIDIOC_QBUF      = ioc(iocRead|iocWrite, 15, unsafe.Sizeof(buffer{}))
	VIDIOC_DQBUF     = ioc(iocRead|iocWrite, 17, unsafe.Sizeof(buffer{}))
	VIDIOC_STREAMON  = ioc(iocWrite, 18, unsafe.Sizeof(int32(0)))
	VIDIOC_STREAMOFF = ioc(iocWrite, 19, unsafe.Sizeof(int32(0)))
)
