package omx

// Index is OMX_INDEXTYPE, the key of a parameter structure.
type Index uint32

const (
	IndexParamPortDefinition Index = 0x02000001
	IndexParamVideoBitrate   Index = 0x06000004

	// IndexVendorAVCTiming stands for the vendor extension that carries H.264
	// VUI timing information. Adapters translate it to the vendor's index.
	IndexVendorAVCTiming Index = 0x7F000001
)

// Param is a parameter structure exchanged with GetParameter/SetParameter.
// Every parameter names the port it applies to.
type Param interface {
	ParamIndex() Index
	ParamPort() PortIndex
}

// VideoFormat is the video member of a port definition's format union.
type VideoFormat struct {
	FrameWidth  uint32
	FrameHeight uint32
	Stride      int32
	SliceHeight uint32
	Bitrate     uint32
	Framerate   uint32 // Q16 frames per second
	Compression Coding
	Color       ColorFormat
}

// PortDefinition is OMX_PARAM_PORTDEFINITIONTYPE. Count, size and format
// are interdependent; the component may adjust all of them when any one is
// set, so always re-query after SetParameter.
type PortDefinition struct {
	Port              PortIndex
	Direction         Direction
	BufferCountActual uint32
	BufferCountMin    uint32
	BufferSize        uint32
	Enabled           bool
	Populated         bool
	Domain            Domain
	Video             VideoFormat
	BufferAlignment   uint32
}

func (*PortDefinition) ParamIndex() Index      { return IndexParamPortDefinition }
func (d *PortDefinition) ParamPort() PortIndex { return d.Port }

// VideoBitrate is OMX_VIDEO_PARAM_BITRATETYPE.
type VideoBitrate struct {
	Port          PortIndex
	ControlRate   ControlRate
	TargetBitrate uint32
}

func (*VideoBitrate) ParamIndex() Index      { return IndexParamVideoBitrate }
func (b *VideoBitrate) ParamPort() PortIndex { return b.Port }

// AVCTiming carries the VUI timing fields of an H.264 encoder.
type AVCTiming struct {
	Port              PortIndex
	TimeScale         uint32
	NumUnitsInTick    uint32
	FixedFrameRate    bool
	TimingInfoPresent bool
}

func (*AVCTiming) ParamIndex() Index      { return IndexVendorAVCTiming }
func (t *AVCTiming) ParamPort() PortIndex { return t.Port }

// BufferHeader is the application's view of OMX_BUFFERHEADERTYPE. Data is
// the whole allocation; the valid payload is Data[Offset:Offset+FilledLen].
type BufferHeader struct {
	Data      []byte
	FilledLen uint32
	Offset    uint32
	Flags     BufferFlags
	Timestamp int64 // microseconds
	Port      PortIndex

	// Private is the component's back-reference to its own header. It
	// identifies the buffer to the component and must not be touched by
	// the application.
	Private interface{}
}

// AllocLen is the capacity of the buffer.
func (b *BufferHeader) AllocLen() uint32 {
	return uint32(len(b.Data))
}

// Payload returns the valid bytes of the buffer, clamped to its capacity.
func (b *BufferHeader) Payload() []byte {
	start := uint64(b.Offset)
	end := start + uint64(b.FilledLen)
	if start > uint64(len(b.Data)) {
		return nil
	}
	if end > uint64(len(b.Data)) {
		end = uint64(len(b.Data))
	}
	return b.Data[start:end]
}

// Reset clears length, offset, flags and timestamp before a buffer is
// handed back to the component.
func (b *BufferHeader) Reset() {
	b.FilledLen = 0
	b.Offset = 0
	b.Flags = 0
	b.Timestamp = 0
}

// Component is one instance of a media component. Implementations must
// accept calls from any goroutine, including from inside EventHandler
// callbacks.
type Component interface {
	GetParameter(p Param) error
	SetParameter(p Param) error

	// SendCommand requests a state transition or port operation. Completion
	// is reported asynchronously through CommandComplete.
	SendCommand(cmd Command, param uint32) error
	GetState() (State, error)

	// AllocateBuffer asks the component to allocate size bytes of
	// component-owned memory for port.
	AllocateBuffer(port PortIndex, size uint32) (*BufferHeader, error)
	FreeBuffer(port PortIndex, buf *BufferHeader) error

	// EmptyThisBuffer submits an input buffer for draining; FillThisBuffer
	// submits an output buffer for filling. Ownership passes to the
	// component until BufferDrained or BufferFilled returns it.
	EmptyThisBuffer(buf *BufferHeader) error
	FillThisBuffer(buf *BufferHeader) error

	// Close frees the component handle. The component is unusable after.
	Close() error
}

// EventHandler receives a component's asynchronous notifications. It is
// called on a goroutine owned by the component and must return promptly.
type EventHandler interface {
	HandleEvent(ev Event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ev Event)

func (f EventHandlerFunc) HandleEvent(ev Event) {
	f(ev)
}

// Core locates components by name.
type Core interface {
	GetHandle(name string, handler EventHandler) (Component, error)
}
