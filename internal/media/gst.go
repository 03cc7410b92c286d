//go:build gst
// +build gst

// Demuxes and parses any container GStreamer understands into H.264 access
// units. Example source spec: "gst:clip.mkv"

package media

import (
	"fmt"
	"io"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

const gstLaunch = "filesrc location=%q ! parsebin ! h264parse config-interval=-1 ! " +
	"video/x-h264,stream-format=byte-stream,alignment=au ! appsink name=sink sync=false"

type gstSource struct {
	pipeline *gst.Pipeline
	sink     *app.Sink
}

// OpenGstreamer builds and starts a parsing pipeline for filename.
func OpenGstreamer(filename string) (PayloadSource, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipelineFromString(fmt.Sprintf(gstLaunch, filename))
	if err != nil {
		return nil, err
	}
	elem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return nil, err
	}
	src := &gstSource{pipeline: pipeline, sink: app.SinkFromElement(elem)}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, err
	}
	log.Info("GStreamer pipeline playing %s", filename)
	return src, nil
}

func (s *gstSource) ReadPayload() (Payload, error) {
	sample := s.sink.PullSample()
	if sample == nil {
		if s.sink.IsEOS() {
			return Payload{}, io.EOF
		}
		return Payload{}, errNoVideo
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return Payload{}, errNoVideo
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := append([]byte(nil), mapInfo.Bytes()...)
	buffer.Unmap()

	return Payload{
		Data:       data,
		EndOfFrame: true,
		Timestamp:  buffer.PresentationTimestamp(),
	}, nil
}

func (s *gstSource) Close() error {
	return s.pipeline.SetState(gst.StateNull)
}

func init() {
	RegisterSourceType("gst", OpenGstreamer)
}
