package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

const envVar = "LOGLEVEL"

// tagState is the level shared by every logger derived for one tag.
type tagState struct {
	tag      string
	level    int32 // accessed atomically
	explicit bool  // set by a "tag=level" directive
}

var (
	tagsMu       sync.Mutex
	tags         = map[string]*tagState{}
	defaultLevel = Info
)

func init() {
	if err := Configure(os.Getenv(envVar)); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s: %v\n", envVar, err)
	}
}

// Configure applies comma-separated "tag=level" directives. A directive
// without "tag=" changes the default level of every tag that has not been
// given an explicit level. Valid directives are applied even when others fail
// to parse; the first parse error is returned.
func Configure(spec string) error {
	var firstErr error
	for _, d := range strings.Split(spec, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		level, err := ParseLevel(v[len(v)-1])
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("directive %q: %v", d, err)
			}
			continue
		}
		if len(v) == 1 {
			setDefaultLevel(level)
		} else {
			setTagLevel(v[0], level)
		}
	}
	return firstErr
}

func setDefaultLevel(level Level) {
	tagsMu.Lock()
	defer tagsMu.Unlock()

	defaultLevel = level
	for _, ts := range tags {
		if !ts.explicit {
			ts.store(level)
		}
	}
}

func setTagLevel(tag string, level Level) {
	ts := lookupTag(tag)

	tagsMu.Lock()
	ts.explicit = true
	tagsMu.Unlock()
	ts.store(level)
}

// lookupTag returns the shared state for tag, creating it at the current
// default level.
func lookupTag(tag string) *tagState {
	tagsMu.Lock()
	defer tagsMu.Unlock()

	ts, ok := tags[tag]
	if !ok {
		ts = &tagState{tag: tag, level: int32(defaultLevel)}
		tags[tag] = ts
	}
	return ts
}
