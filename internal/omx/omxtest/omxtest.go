// Package omxtest provides a simulated OpenMAX IL video component. It keeps
// the protocol's ownership and state rules, delivers callbacks from its own
// goroutine, and lets tests script port-settings changes and failures.
package omxtest

import (
	"fmt"
	"sync"

	"github.com/lanikai/alohaomx/internal/logging"
	"github.com/lanikai/alohaomx/internal/omx"
)

var log = logging.DefaultLogger.WithTag("omxtest")

// Reconfigure scripts a PortSettingsChanged on the output port.
type Reconfigure struct {
	// Raise the event once this many output frames have been produced.
	AfterFrames int

	// New output definition; zero values keep the current setting.
	BufferSize  uint32
	BufferCount uint32
	Width       uint32
	Height      uint32
}

// Options configures a simulated component.
type Options struct {
	InputBufferSize  uint32
	OutputBufferSize uint32
	InputCountMin    uint32
	OutputCountMin   uint32

	// Transform turns an input payload into the output payload. The default
	// copies the payload.
	Transform func(in []byte) []byte

	Reconfigure *Reconfigure

	// Fault injection.
	FailAllocation   map[omx.PortIndex]int // fail the n-th (1-based) allocation on the port
	RejectCommands   []omx.Command         // SendCommand fails with ErrorIncorrectStateOperation
	SilentCommands   []omx.Command         // accepted, but never confirmed
	RejectParameters bool                  // SetParameter always fails
	NoVendorTiming   bool                  // AVCTiming is an unsupported index
	ErrorAfterFrames int                   // raise ErrorCode after this many frames
	ErrorCode        omx.ErrorCode
}

func (o *Options) setDefaults() {
	if o.InputBufferSize == 0 {
		o.InputBufferSize = 64 * 1024
	}
	if o.OutputBufferSize == 0 {
		o.OutputBufferSize = 64 * 1024
	}
	if o.InputCountMin == 0 {
		o.InputCountMin = 1
	}
	if o.OutputCountMin == 0 {
		o.OutputCountMin = 1
	}
	if o.Transform == nil {
		o.Transform = func(in []byte) []byte { return in }
	}
	if o.ErrorCode == 0 {
		o.ErrorCode = omx.ErrorStreamCorrupt
	}
}

// Core hands out simulated components and remembers them for inspection.
type Core struct {
	Options Options

	mu         sync.Mutex
	components []*Component
}

// NewCore returns a Core whose components use opts.
func NewCore(opts Options) *Core {
	return &Core{Options: opts}
}

func (core *Core) GetHandle(name string, handler omx.EventHandler) (omx.Component, error) {
	if name == "" {
		return nil, omx.ErrorInvalidComponentName
	}
	c := New(handler, core.Options)

	core.mu.Lock()
	core.components = append(core.components, c)
	core.mu.Unlock()

	log.Debug("Created component %q", name)
	return c, nil
}

// Last returns the most recently created component.
func (core *Core) Last() *Component {
	core.mu.Lock()
	defer core.mu.Unlock()
	if len(core.components) == 0 {
		return nil
	}
	return core.components[len(core.components)-1]
}

type owner int

const (
	ownerApp owner = iota
	ownerComponent
)

type slot struct {
	buf   *omx.BufferHeader
	owner owner
}

type port struct {
	def       omx.PortDefinition
	slots     map[*omx.BufferHeader]*slot
	queue     []*omx.BufferHeader
	allocated int // lifetime allocation attempts
	disabling bool
	enabling  bool
}

func (p *port) live() int {
	return len(p.slots)
}

func (p *port) pop() *omx.BufferHeader {
	buf := p.queue[0]
	p.queue = p.queue[1:]
	p.slots[buf].owner = ownerApp
	return buf
}

// Stats counts what the component observed.
type Stats struct {
	Allocations     int
	Frees           int
	EmptyCalls      int
	FillCalls       int
	FramesProduced  int
	SettingsChanges int
	Commands        []string
	EmptiedBuffers  []omx.BufferHeader // snapshots at submission
	Violations      []string
	LeakedAtClose   int

	// Submissions that raced the component's own EOS and were returned
	// unprocessed.
	LateSubmissions int
}

func (s *Stats) violation(format string, a ...interface{}) error {
	msg := fmt.Sprintf(format, a...)
	log.Warn("Protocol violation: %s", msg)
	s.Violations = append(s.Violations, msg)
	return omx.ErrorIncorrectStateOperation
}
