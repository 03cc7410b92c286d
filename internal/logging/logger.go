package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger struct {
	ts *tagState

	// Prepended to every message, e.g. a session identifier.
	prefix string

	// Shared by all derived loggers, so that SetDestination redirects the
	// whole tree and messages from different goroutines never interleave.
	out *output
}

type output struct {
	mu sync.Mutex
	w  io.Writer
}

// Write to stderr by default. color.Error strips escape codes on terminals
// that cannot render them.
var DefaultLogger = &Logger{ts: lookupTag(""), out: &output{w: color.Error}}

func (s *tagState) load() Level {
	return Level(atomic.LoadInt32(&s.level))
}

func (s *tagState) store(level Level) {
	atomic.StoreInt32(&s.level, int32(level))
}

// Level reports the level at which this logger currently logs.
func (log *Logger) Level() Level {
	return log.ts.load()
}

// Tag used to filter and classify log messages.
func (log *Logger) Tag() string {
	return log.ts.tag
}

// Enabled reports whether a message at level would be written.
func (log *Logger) Enabled(level Level) bool {
	return level <= log.ts.load()
}

// Override the destination for this logger and every logger derived from
// the same root.
func (log *Logger) SetDestination(w io.Writer) {
	log.out.mu.Lock()
	log.out.w = w
	log.out.mu.Unlock()
}

// Derive a new logger with the given tag. Loggers with the same tag share a
// level, which LOGLEVEL or Configure may change at any time.
func (log *Logger) WithTag(tag string) *Logger {
	return &Logger{ts: lookupTag(tag), prefix: log.prefix, out: log.out}
}

// Derive a logger that prepends "[prefix] " to every message.
func (log *Logger) WithPrefix(prefix string) *Logger {
	p := "[" + prefix + "] "
	return &Logger{ts: log.ts, prefix: log.prefix + p, out: log.out}
}

// Wrapper for []byte that implements io.Writer. Simpler and cheaper than
// bytes.Buffer.
type buffer []byte

func (b *buffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

func (b *buffer) writeString(s string) {
	*b = append(*b, s...)
}

var bufPool = sync.Pool{
	New: func() interface{} {
		return make(buffer, 0, 256)
	},
}

// Log a message at the given level. Include the file and line number from
// 'calldepth' steps up the call stack.
func (log *Logger) Log(level Level, calldepth int, format string, a ...interface{}) {
	if !log.Enabled(level) {
		return
	}

	buf := bufPool.Get().(buffer)
	defer func() { bufPool.Put(buf[:0]) }()

	buf.writeString(stampColor.Sprint(time.Now().Format(timestampFormat)))

	_, file, line, ok := runtime.Caller(calldepth + 1)
	if !ok {
		file = "?"
	}
	header := fmt.Sprintf(" %c/%s[%s:%d]", level.letter(), log.ts.tag, filepath.Base(file), line)
	buf.writeString(level.color().Sprint(header))
	buf.writeString(" ")
	buf.writeString(log.prefix)

	fmt.Fprintf(&buf, format, a...)

	if n := len(format); n == 0 || format[n-1] != '\n' {
		buf.writeString("\n")
	}

	log.out.mu.Lock()
	_, err := log.out.w.Write(buf)
	log.out.mu.Unlock()
	if err != nil {
		panic(fmt.Sprintf("Failed to log to %v: %v", log.out.w, err))
	}
}

func (log *Logger) Error(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
}

func (log *Logger) Warn(format string, a ...interface{}) {
	log.Log(Warn, 1, format, a...)
}

func (log *Logger) Info(format string, a ...interface{}) {
	log.Log(Info, 1, format, a...)
}

func (log *Logger) Debug(format string, a ...interface{}) {
	log.Log(Debug, 1, format, a...)
}

func (log *Logger) Trace(n int, format string, a ...interface{}) {
	log.Log(Level(n), 1, format, a...)
}

// Fatalf logs at Error level and exits the process.
func (log *Logger) Fatalf(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
	os.Exit(1)
}
