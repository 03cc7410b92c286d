package h264

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType(t *testing.T) {
	nalu := NALU{0x67, 0x42}
	assert.Equal(t, byte(TypeSPS), nalu.Type())
	assert.Equal(t, byte(3), nalu.NRI())
	assert.Equal(t, byte(0), nalu.ForbiddenBit())
	assert.False(t, nalu.IsVCL())

	assert.True(t, NALU{0x65, 0x88}.IsVCL())
	assert.True(t, NALU{0x41, 0x9a}.IsVCL())
}

func TestFirstMbInSlice(t *testing.T) {
	// ue(v) "1" is 0.
	first, err := NALU{0x65, 0x88, 0x84}.FirstMbInSlice()
	assert.NoError(t, err)
	assert.Equal(t, uint(0), first)

	// ue(v) "010" is 1.
	first, err = NALU{0x41, 0x40}.FirstMbInSlice()
	assert.NoError(t, err)
	assert.Equal(t, uint(1), first)

	// ue(v) "00111" is 6.
	first, err = NALU{0x41, 0x38}.FirstMbInSlice()
	assert.NoError(t, err)
	assert.Equal(t, uint(6), first)

	_, err = NALU{0x41}.FirstMbInSlice()
	assert.Error(t, err)
}

func TestStartsAccessUnit(t *testing.T) {
	assert.True(t, NALU{0x09, 0xf0}.StartsAccessUnit())
	assert.True(t, NALU{0x67, 0x42}.StartsAccessUnit())
	assert.True(t, NALU{0x65, 0x88}.StartsAccessUnit())
	assert.False(t, NALU{0x41, 0x40}.StartsAccessUnit())
	assert.False(t, NALU{0x0c, 0xff}.StartsAccessUnit())
}
