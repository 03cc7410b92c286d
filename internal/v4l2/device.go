//go:build linux
// +build linux

// Package v4l2 captures raw video frames from a Video4Linux2 device.
package v4l2

import (
	"io"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lanikai/alohaomx/internal/logging"
)

var log = logging.DefaultLogger.WithTag("v4l2")

// A V4L2 character device.
type Device struct {
	cfg Config

	// Device path, usually "/dev/video0".
	path string

	// File descriptor of v4l2 device.
	fd int

	// Memory-mapped driver buffers.
	mmaps [][]byte

	// Negotiated format.
	width, height int
	pixelFormat   uint32
	frameSize     int
}

// Open a capture device and negotiate its pixel format. The driver may
// adjust the geometry; FrameSize reports the result.
func Open(path string, cfg Config) (*Device, error) {
	cfg = cfg.withDefaults()

	fd, err := unix.Open(path, unix.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}

	dev := &Device{cfg: cfg, path: path, fd: fd}
	if err := dev.setPixelFormat(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return dev, nil
}

func (dev *Device) Close() error {
	if err := dev.Stop(); err != nil {
		log.Warn("Failed to stop %s: %v", dev.path, err)
	}
	return unix.Close(dev.fd)
}

// FrameSize is the byte size of one captured frame.
func (dev *Device) FrameSize() int {
	return dev.frameSize
}

// Geometry is the negotiated frame size in pixels.
func (dev *Device) Geometry() (width, height int) {
	return dev.width, dev.height
}

// PixelFormat is the negotiated fourcc, which need not be the one asked for.
func (dev *Device) PixelFormat() uint32 {
	return dev.pixelFormat
}

func (dev *Device) ioctl(request uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		uintptr(dev.fd),
		uintptr(request),
		uintptr(arg),
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func (dev *Device) setPixelFormat() error {
	f := format{
		typ: bufTypeVideoCapture,
		pix: pixFormat{
			width:       dev.cfg.Width,
			height:      dev.cfg.Height,
			pixelformat: dev.cfg.Format,
			field:       fieldAny,
		},
	}
	if err := dev.ioctl(VIDIOC_S_FMT, unsafe.Pointer(&f)); err != nil {
		return err
	}
	if f.pix.width != dev.cfg.Width || f.pix.height != dev.cfg.Height {
		log.Warn("%s: requested %dx%d, got %dx%d", dev.path, dev.cfg.Width, dev.cfg.Height, f.pix.width, f.pix.height)
	}
	dev.width, dev.height = int(f.pix.width), int(f.pix.height)
	dev.pixelFormat = f.pix.pixelformat
	dev.frameSize = int(f.pix.sizeimage)
	log.Info("%s: %dx%d, %d bytes per frame", dev.path, f.pix.width, f.pix.height, dev.frameSize)
	return nil
}

// Query buffer parameters.
func (dev *Device) queryBuffer(n uint32) (length, offset uint32, err error) {
	qb := buffer{
		index:  n,
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err = dev.ioctl(VIDIOC_QUERYBUF, unsafe.Pointer(&qb)); err != nil {
		return
	}
	return qb.length, qb.offset, nil
}

// Request specified number of kernel buffers memory-mapped to user-space.
func (dev *Device) requestBuffers(n int) (int, error) {
	rb := requestBuffers{
		count:  uint32(n),
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	err := dev.ioctl(VIDIOC_REQBUFS, unsafe.Pointer(&rb))
	return int(rb.count), err
}

func (dev *Device) mapMemory() error {
	if dev.mmaps != nil {
		panic("v4l2 device: memory already mapped")
	}

	n, err := dev.requestBuffers(dev.cfg.Buffers)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		length, offset, err := dev.queryBuffer(uint32(i))
		if err != nil {
			return err
		}
		m, err := unix.Mmap(
			dev.fd,
			int64(offset),
			int(length),
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_SHARED,
		)
		if err != nil {
			return err
		}
		dev.mmaps = append(dev.mmaps, m)
	}
	return nil
}

func (dev *Device) unmapMemory() error {
	for _, m := range dev.mmaps {
		if err := unix.Munmap(m); err != nil {
			return err
		}
	}
	dev.mmaps = nil

	_, err := dev.requestBuffers(0)
	return err
}

func (dev *Device) enqueue(index int) error {
	qbuf := buffer{
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
		index:  uint32(index),
	}
	return dev.ioctl(VIDIOC_QBUF, unsafe.Pointer(&qbuf))
}

func (dev *Device) dequeue() (index, n int, err error) {
	dqbuf := buffer{
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	err = dev.ioctl(VIDIOC_DQBUF, unsafe.Pointer(&dqbuf))
	return int(dqbuf.index), int(dqbuf.bytesused), err
}

func (dev *Device) enableStream() error {
	typ := int32(bufTypeVideoCapture)
	return dev.ioctl(VIDIOC_STREAMON, unsafe.Pointer(&typ))
}

func (dev *Device) disableStream() error {
	// Disable stream (dequeues any outstanding buffers as well)
	typ := int32(bufTypeVideoCapture)
	return dev.ioctl(VIDIOC_STREAMOFF, unsafe.Pointer(&typ))
}

// Start video capture.
func (dev *Device) Start() error {
	if err := dev.mapMemory(); err != nil {
		return err
	}

	for i := range dev.mmaps {
		if err := dev.enqueue(i); err != nil {
			return err
		}
	}

	return dev.enableStream()
}

// Stop video capture.
func (dev *Device) Stop() error {
	if dev.mmaps == nil {
		return nil
	}
	if err := dev.disableStream(); err != nil {
		return err
	}
	return dev.unmapMemory()
}

// Read a video frame from the device. Blocks until data is available.
func (dev *Device) ReadFrame() (out []byte, err error) {
	if dev.mmaps == nil {
		panic("v4l2 device: illegal state, capture not started")
	}

	i, n, err := dev.dequeue()
	if err != nil {
		if err == syscall.EINVAL {
			err = io.EOF
		}
		return
	}

	// Copy data to new heap-allocated buffer.
	out = append([]byte(nil), dev.mmaps[i][:n]...)

	err = dev.enqueue(i)
	return
}
