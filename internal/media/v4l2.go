//go:build linux
// +build linux

// Captures raw NV12 frames from a camera. Cameras that only offer YUYV are
// converted on the fly.
// Example source spec: "v4l2:1280x720:/dev/video0"

package media

import (
	"image"
	"time"

	"github.com/lanikai/alohaomx/internal/color"
	"github.com/lanikai/alohaomx/internal/v4l2"
)

type captureSource struct {
	dev   *v4l2.Device
	start time.Time

	// Set when the device delivers YUYV.
	yuyv *color.YUYV
}

// OpenCapture starts capturing width x height frames from a V4L2 device.
func OpenCapture(path string, width, height int) (PayloadSource, error) {
	dev, err := v4l2.Open(path, v4l2.Config{
		Format: v4l2.PixelFormatNV12,
		Width:  uint32(width),
		Height: uint32(height),
	})
	if err != nil {
		return nil, err
	}

	s := &captureSource{dev: dev}
	switch dev.PixelFormat() {
	case v4l2.PixelFormatNV12:
	case v4l2.PixelFormatYUYV:
		w, h := dev.Geometry()
		log.Info("%s delivers YUYV, converting to NV12", path)
		s.yuyv = &color.YUYV{Rect: image.Rect(0, 0, w, h), Stride: 2 * w}
	default:
		dev.Close()
		return nil, errNoVideo
	}

	if err := dev.Start(); err != nil {
		dev.Close()
		return nil, err
	}
	s.start = time.Now()
	return s, nil
}

func (s *captureSource) ReadPayload() (Payload, error) {
	for {
		frame, err := s.dev.ReadFrame()
		if err != nil {
			return Payload{}, err
		}
		if len(frame) < s.dev.FrameSize() {
			log.Debug("Dropping %d byte frame: %v", len(frame), errShortFrame)
			continue
		}
		if s.yuyv != nil {
			frame = s.convert(frame)
		}
		return Payload{
			Data:       frame,
			EndOfFrame: true,
			Timestamp:  time.Since(s.start),
		}, nil
	}
}

func (s *captureSource) convert(frame []byte) []byte {
	s.yuyv.Packed = frame
	nv12 := make([]byte, color.NV12Size(s.yuyv.Rect.Dx(), s.yuyv.Rect.Dy()))
	color.YUYVToNV12(nv12, s.yuyv)
	return nv12
}

func (s *captureSource) Close() error {
	return s.dev.Close()
}

func init() {
	RegisterSourceType("v4l2", func(spec string) (PayloadSource, error) {
		width, height, path, err := parseGeometry(spec)
		if err != nil {
			return nil, err
		}
		return OpenCapture(path, width, height)
	})
}
