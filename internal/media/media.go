// Package media provides the upstream producers that feed a codec session
// and the downstream sinks that receive its output. Both are opened from a
// "tag:path" spec, e.g. "h264:in.264" or "file:out.nv12".
package media

import (
	"github.com/lanikai/alohaomx/internal/logging"
)

var log = logging.DefaultLogger.WithTag("media")
