//go:build linux
// +build linux

package v4l2

type Config struct {
	Format uint32 // Pixel format (e.g. PixelFormatNV12)
	Width  uint32 // Video width in pixels
	Height uint32 // Video height in pixels

	// Number of kernel driver buffers to map.
	Buffers int
}

func (c Config) withDefaults() Config {
	if c.Format == 0 {
		c.Format = PixelFormatNV12
	}
	if c.Width == 0 {
		c.Width = 640
	}
	if c.Height == 0 {
		c.Height = 480
	}
	if c.Buffers <= 0 {
		c.Buffers = 4
	}
	return c
}
