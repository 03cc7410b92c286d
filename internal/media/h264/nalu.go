// Package h264 inspects H.264 NAL units well enough to find access unit
// boundaries. See ITU-T H.264 section 7.4.1.2.3.
package h264

import (
	"bytes"

	"github.com/nareix/joy4/utils/bits"
)

// NAL unit types.
const (
	TypeSlice    = 1
	TypeIDR      = 5
	TypeSEI      = 6
	TypeSPS      = 7
	TypePPS      = 8
	TypeAUD      = 9
	TypeEndOfSeq = 10
	TypeEndOfStr = 11
	TypeFiller   = 12
)

type NALU []byte

func (nalu NALU) ForbiddenBit() byte {
	return nalu[0] & 0x80 >> 7
}

func (nalu NALU) NRI() byte {
	return nalu[0] & 0x60 >> 5
}

func (nalu NALU) Type() byte {
	return nalu[0] & 0x1f
}

// IsVCL reports whether the unit carries slice data.
func (nalu NALU) IsVCL() bool {
	t := nalu.Type()
	return t >= TypeSlice && t <= TypeIDR
}

// FirstMbInSlice decodes first_mb_in_slice from a slice header. A zero
// value marks the first slice of a new picture.
func (nalu NALU) FirstMbInSlice() (uint, error) {
	r := &bits.GolombBitReader{R: bytes.NewReader(nalu[1:])}
	return r.ReadExponentialGolombCode()
}

// StartsAccessUnit reports whether nalu opens a new access unit, given that
// the current access unit already holds a VCL unit.
func (nalu NALU) StartsAccessUnit() bool {
	switch t := nalu.Type(); {
	case t == TypeAUD, t == TypeSPS, t == TypePPS, t == TypeSEI:
		return true
	case t >= 14 && t <= 18:
		return true
	case nalu.IsVCL():
		first, err := nalu.FirstMbInSlice()
		return err == nil && first == 0
	}
	return false
}
