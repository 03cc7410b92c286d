//go:build linux || darwin
// +build linux darwin

// Reads fixed-size raw frames from a memory-mapped file.
// Example source spec: "raw:640x480:in.nv12"

package media

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type rawSource struct {
	file *os.File
	data []byte // mapped file contents

	frameSize int
	offset    int
	frames    int
}

// OpenRaw maps filename and returns a source of frameSize-byte frames. A
// trailing partial frame ends the input.
func OpenRaw(filename string, frameSize int) (PayloadSource, error) {
	if frameSize <= 0 {
		return nil, errors.Errorf("invalid frame size %d", frameSize)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	src := &rawSource{file: f, frameSize: frameSize}
	if size := fi.Size(); size > 0 {
		src.data, err = unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, err
		}
	}
	log.Info("Opened %s: %d frames of %d bytes", filename, len(src.data)/frameSize, frameSize)
	return src, nil
}

// ReadPayload returns a slice of the mapping, valid until Close.
func (s *rawSource) ReadPayload() (Payload, error) {
	remaining := len(s.data) - s.offset
	if remaining == 0 {
		return Payload{}, io.EOF
	}
	if remaining < s.frameSize {
		log.Warn("Ignoring %d trailing bytes: %v", remaining, errShortFrame)
		s.offset = len(s.data)
		return Payload{}, io.EOF
	}

	p := Payload{
		Data:       s.data[s.offset : s.offset+s.frameSize],
		EndOfFrame: true,
		Timestamp:  time.Duration(s.frames) * time.Second / defaultFrameRate,
	}
	s.offset += s.frameSize
	s.frames++
	return p, nil
}

func (s *rawSource) Close() error {
	if s.data != nil {
		if err := unix.Munmap(s.data); err != nil {
			log.Warn("Failed to unmap %s: %v", s.file.Name(), err)
		}
		s.data = nil
	}
	return s.file.Close()
}

// Parse "WIDTHxHEIGHT:path" into a 4:2:0 frame size and a path. Without a
// geometry prefix, 640x480 is assumed.
func parseRawSpec(spec string) (frameSize int, path string, err error) {
	width, height, path, err := parseGeometry(spec)
	if err != nil {
		return 0, "", err
	}
	return width * height * 3 / 2, path, nil
}

func parseGeometry(spec string) (width, height int, path string, err error) {
	width, height = 640, 480
	path = spec
	if i := strings.Index(spec, ":"); i > 0 {
		if _, err = fmt.Sscanf(spec[:i], "%dx%d", &width, &height); err != nil {
			return 0, 0, "", errors.Errorf("invalid frame geometry %q", spec[:i])
		}
		path = spec[i+1:]
	}
	if width <= 0 || height <= 0 {
		return 0, 0, "", errors.Errorf("invalid frame geometry %dx%d", width, height)
	}
	return width, height, path, nil
}

func init() {
	RegisterSourceType("raw", func(spec string) (PayloadSource, error) {
		frameSize, path, err := parseRawSpec(spec)
		if err != nil {
			return nil, err
		}
		return OpenRaw(path, frameSize)
	})
}
