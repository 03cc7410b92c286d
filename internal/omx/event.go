package omx

import "fmt"

// Event is the closed set of notifications a component delivers.
type Event interface {
	fmt.Stringer
	isEvent()
}

// CommandComplete confirms a command. Data is the new state for
// CommandStateSet and the port index for port commands.
type CommandComplete struct {
	Command Command
	Data    uint32
}

// ErrorRaised reports an asynchronous component error.
type ErrorRaised struct {
	Code ErrorCode
	Data uint32
}

// PortSettingsChanged announces that the port's definition must be
// renegotiated, e.g. once a decoder discovers the stream resolution.
type PortSettingsChanged struct {
	Port  PortIndex
	Index Index
}

// BufferFlag reports a flag, normally EOS, propagating out of a port.
type BufferFlag struct {
	Port  PortIndex
	Flags BufferFlags
}

// BufferDrained returns an input buffer to the application.
type BufferDrained struct {
	Buffer *BufferHeader
}

// BufferFilled returns an output buffer to the application.
type BufferFilled struct {
	Buffer *BufferHeader
}

func (CommandComplete) isEvent()     {}
func (ErrorRaised) isEvent()         {}
func (PortSettingsChanged) isEvent() {}
func (BufferFlag) isEvent()          {}
func (BufferDrained) isEvent()       {}
func (BufferFilled) isEvent()        {}

func (e CommandComplete) String() string {
	switch e.Command {
	case CommandStateSet:
		return fmt.Sprintf("CommandComplete(%v, %v)", e.Command, State(e.Data))
	case CommandPortDisable, CommandPortEnable, CommandFlush:
		return fmt.Sprintf("CommandComplete(%v, %v)", e.Command, PortIndex(e.Data))
	default:
		return fmt.Sprintf("CommandComplete(%v, %d)", e.Command, e.Data)
	}
}

func (e ErrorRaised) String() string {
	return fmt.Sprintf("Error(%v, %d)", e.Code, e.Data)
}

func (e PortSettingsChanged) String() string {
	return fmt.Sprintf("PortSettingsChanged(%v)", e.Port)
}

func (e BufferFlag) String() string {
	return fmt.Sprintf("BufferFlag(%v, %v)", e.Port, e.Flags)
}

func (e BufferDrained) String() string {
	return fmt.Sprintf("BufferDrained(%p, len=%d, flags=%v)", e.Buffer, e.Buffer.FilledLen, e.Buffer.Flags)
}

func (e BufferFilled) String() string {
	return fmt.Sprintf("BufferFilled(%p, len=%d, flags=%v)", e.Buffer, e.Buffer.FilledLen, e.Buffer.Flags)
}
