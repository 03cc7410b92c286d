//go:build mp4 || !release
// +build mp4 !release

package media

import (
	"bytes"
	"os"

	"github.com/nareix/joy4/codec/h264parser"
	"github.com/nareix/joy4/format/mp4"
)

// Open an MP4 file and return its H.264 track as Annex B access units. SPS
// and PPS are sent along with every key frame.
func OpenMP4(filename string) (PayloadSource, error) {
	log.Info("Opening file %s", filename)
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	demuxer := mp4.NewDemuxer(file)

	codecs, err := demuxer.Streams()
	if err != nil {
		file.Close()
		return nil, err
	}

	for i, codec := range codecs {
		switch cd := codec.(type) {
		case h264parser.CodecData:
			log.Info("%v stream: %dx%d", cd.Type(), cd.Width(), cd.Height())
			return &mp4Source{
				file:    file,
				demuxer: demuxer,
				idx:     int8(i),
				codec:   cd,
			}, nil
		default:
			log.Debug("Skipping %v stream", codec.Type())
		}
	}

	file.Close()
	return nil, errNoVideo
}

type mp4Source struct {
	file    *os.File
	demuxer *mp4.Demuxer

	idx   int8
	codec h264parser.CodecData
}

func (s *mp4Source) ReadPayload() (Payload, error) {
	for {
		// io.EOF passes straight through as end of input.
		pkt, err := s.demuxer.ReadPacket()
		if err != nil {
			return Payload{}, err
		}
		if pkt.Idx != s.idx {
			continue
		}

		var au bytes.Buffer
		if pkt.IsKeyFrame {
			writeAnnexB(&au, s.codec.SPS())
			writeAnnexB(&au, s.codec.PPS())
		}
		nalus, typ := h264parser.SplitNALUs(pkt.Data)
		if typ != h264parser.NALU_AVCC {
			log.Debug("Packet is not length prefixed, passing it through")
		}
		for _, nalu := range nalus {
			writeAnnexB(&au, nalu)
		}

		log.Trace(2, "Packet: %6d bytes at %v, key frame %v", au.Len(), pkt.Time, pkt.IsKeyFrame)
		return Payload{
			Data:       au.Bytes(),
			EndOfFrame: true,
			Timestamp:  pkt.Time,
		}, nil
	}
}

func (s *mp4Source) Close() error {
	return s.file.Close()
}

func writeAnnexB(w *bytes.Buffer, nalu []byte) {
	if len(nalu) == 0 {
		return
	}
	w.Write(annexBStartCode)
	w.Write(nalu)
}

func init() {
	RegisterSourceType("mp4", func(path string) (PayloadSource, error) {
		return OpenMP4(path)
	})
}
