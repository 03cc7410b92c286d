// Copyright 2019 Lanikai Labs. All rights reserved.

// Package color converts packed camera formats into the planar 4:2:0 layouts
// the encoder consumes.
package color

import (
	"image"
)

type YUYV struct {
	Packed []uint8
	Rect   image.Rectangle
	Stride int
}

// NewYUYV allocates and returns a YUYV image
func NewYUYV(r image.Rectangle) *YUYV {
	return &YUYV{
		Packed: make([]byte, 2*r.Dx()*r.Dy()),
		Rect:   r,
		Stride: 2 * r.Dx(),
	}
}

// YUYVToYUV420P converts YUYV (i.e. YUY2) packed to YUV420 planar format.
// Chroma is taken from even rows.
func YUYVToYUV420P(dst *image.YCbCr, src *YUYV) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for row := 0; row < h; row++ {
		in := src.Packed[row*src.Stride:]
		y := dst.Y[row*dst.YStride:]
		for col := 0; col < w; col++ {
			y[col] = in[2*col]
		}
		if row%2 != 0 {
			continue
		}
		cb := dst.Cb[row/2*dst.CStride:]
		cr := dst.Cr[row/2*dst.CStride:]
		for col := 0; col < w/2; col++ {
			cb[col] = in[4*col+1]
			cr[col] = in[4*col+3]
		}
	}
}

// NV12Size is the byte size of a w x h NV12 frame.
func NV12Size(w, h int) int {
	return w*h + 2*(w/2)*(h/2)
}

// YUYVToNV12 converts YUYV packed to NV12: a luma plane followed by one
// plane of interleaved Cb/Cr samples. dst must hold NV12Size bytes.
func YUYVToNV12(dst []byte, src *YUYV) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	uv := dst[w*h:]
	for row := 0; row < h; row++ {
		in := src.Packed[row*src.Stride:]
		y := dst[row*w:]
		for col := 0; col < w; col++ {
			y[col] = in[2*col]
		}
		if row%2 != 0 {
			continue
		}
		// Each YUYV macropixel already carries one Cb/Cr pair.
		c := uv[row/2*w:]
		for col := 0; col < w/2; col++ {
			c[2*col] = in[4*col+1]
			c[2*col+1] = in[4*col+3]
		}
	}
}
