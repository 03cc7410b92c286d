package media

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"time"

	"github.com/nareix/joy4/codec/h264parser"

	"github.com/lanikai/alohaomx/internal/media/h264"
)

// Raw H.264 source with NALUs separated by Annex B start codes. Each payload
// is one access unit, every NALU prefixed with a 4-byte start code.
type h264Reader struct {
	in      io.ReadCloser
	scanner *bufio.Scanner

	// First NALU of the next access unit, read ahead while finishing the
	// current one.
	pending []byte

	frameDuration time.Duration
	frames        int
	loggedSPS     bool
}

const (
	naluBufferInitialSize = 16 * 1024
	naluBufferMaximumSize = 4 * 1024 * 1024

	defaultFrameRate = 30
)

func NewH264Reader(in io.ReadCloser) PayloadSource {
	buffer := make([]byte, naluBufferInitialSize)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(buffer, naluBufferMaximumSize)
	scanner.Split(splitNALU)
	return &h264Reader{
		in:            in,
		scanner:       scanner,
		frameDuration: time.Second / defaultFrameRate,
	}
}

func (r *h264Reader) readNALU() (nalu []byte, err error) {
	if r.pending != nil {
		nalu, r.pending = r.pending, nil
		return nalu, nil
	}
	for r.scanner.Scan() {
		if b := r.scanner.Bytes(); len(b) > 0 {
			// The scanner reuses its buffer.
			return append([]byte(nil), b...), nil
		}
	}
	if err = r.scanner.Err(); err == nil {
		err = io.EOF
	}
	return nil, err
}

func (r *h264Reader) ReadPayload() (Payload, error) {
	var au bytes.Buffer
	hasVCL := false

	for {
		nalu, err := r.readNALU()
		if err == io.EOF && au.Len() > 0 {
			break
		}
		if err != nil {
			return Payload{}, err
		}

		n := h264.NALU(nalu)
		if hasVCL && n.StartsAccessUnit() {
			r.pending = nalu
			break
		}
		if n.Type() == h264.TypeSPS {
			r.logSPS(nalu)
		}
		hasVCL = hasVCL || n.IsVCL()

		au.Write(annexBStartCode)
		au.Write(nalu)
	}

	p := Payload{
		Data:       au.Bytes(),
		EndOfFrame: hasVCL,
		Timestamp:  time.Duration(r.frames) * r.frameDuration,
	}
	if hasVCL {
		r.frames++
	}
	return p, nil
}

func (r *h264Reader) logSPS(nalu []byte) {
	if r.loggedSPS {
		return
	}
	info, err := h264parser.ParseSPS(nalu)
	if err != nil {
		log.Warn("Unparseable SPS: %v", err)
		return
	}
	r.loggedSPS = true
	log.Info("H.264 stream: profile %d level %d, %dx%d", info.ProfileIdc, info.LevelIdc, info.Width, info.Height)
}

func (r *h264Reader) Close() error {
	return r.in.Close()
}

var (
	h264StartCode   = []byte{0, 0, 1}
	annexBStartCode = []byte{0, 0, 0, 1}
)

// Splits NAL units on H.264 Annex B start codes.
func splitNALU(data []byte, atEOF bool) (advance int, nalu []byte, err error) {
	i := bytes.Index(data, h264StartCode)

	switch i {
	case -1:
		if atEOF && len(data) > 0 {
			// Final NAL unit, not followed by a start code.
			return len(data), data, nil
		}
		// No start code found. Wait for more data.
		advance = 0
	case 0:
		// 3-byte start code (0x000001) found at data[0]. Skip these 3 bytes.
		advance = 3
	case 1:
		// 4-byte start code (0x00000001) found at data[0]. Skip these 4 bytes.
		advance = 4
	default:
		// Next start code found at index i.
		advance = i + 3
		if data[i-1] == 0x00 {
			// 4-byte start code
			nalu = data[0 : i-1]
		} else {
			// 3-byte start code
			nalu = data[0:i]
		}
	}
	return
}

func openH264(filename string) (PayloadSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	return NewH264Reader(f), nil
}

func init() {
	RegisterSourceType("h264", openH264)
}
