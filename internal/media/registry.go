package media

import (
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Open a source based on its "source spec". A source spec is a colon-separated string
// consisting of a source tag and a source path:
//    sourceSpec = sourceTag + ":" + sourcePath
// The format of the source path is defined by the registered OpenFunc.
func OpenSource(spec string) (PayloadSource, error) {
	log.Debug("Registered source types: %v", sortedTags(sources))

	tag, path := splitSpec(spec)
	if tag == "" {
		tag = sourceTagFor(path)
	}
	open, found := sources[tag]
	if !found {
		return nil, errors.Errorf("Source type '%s' not registered", tag)
	}
	src, err := open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s source %q", tag, path)
	}
	return src, nil
}

// Open a sink based on its "sink spec", formed like a source spec.
func OpenSink(spec string) (io.WriteCloser, error) {
	log.Debug("Registered sink types: %v", sortedTags(sinks))

	tag, path := splitSpec(spec)
	if tag == "" {
		tag = "file"
	}
	open, found := sinks[tag]
	if !found {
		return nil, errors.Errorf("Sink type '%s' not registered", tag)
	}
	sink, err := open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s sink %q", tag, path)
	}
	return sink, nil
}

// A function used to open a specific source type.
type OpenFunc func(path string) (PayloadSource, error)

// A function used to open a specific sink type.
type OpenSinkFunc func(path string) (io.WriteCloser, error)

var (
	sources = map[string]OpenFunc{}
	sinks   = map[string]OpenSinkFunc{}
)

// Register a source type, identified by its "source tag". Sources of this type will be
// opened with the given function.
func RegisterSourceType(tag string, open OpenFunc) {
	sources[tag] = open
}

// Register a sink type, identified by its "sink tag".
func RegisterSinkType(tag string, open OpenSinkFunc) {
	sinks[tag] = open
}

// SourceTypes lists the registered source tags.
func SourceTypes() []string {
	return sortedTags(sources)
}

// SinkTypes lists the registered sink tags.
func SinkTypes() []string {
	return sortedTags(sinks)
}

func splitSpec(spec string) (tag, path string) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) == 1 {
		return "", parts[0]
	}
	return parts[0], parts[1]
}

// Guess the source type of an untagged spec from its file extension.
func sourceTagFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".mov":
		return "mp4"
	case ".yuv", ".nv12", ".raw":
		return "raw"
	default:
		return "h264"
	}
}

func sortedTags(m interface{}) []string {
	var tags []string
	switch m := m.(type) {
	case map[string]OpenFunc:
		for t := range m {
			tags = append(tags, t)
		}
	case map[string]OpenSinkFunc:
		for t := range m {
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	return tags
}
