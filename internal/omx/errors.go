package omx

import (
	"fmt"

	errors "golang.org/x/xerrors"
)

// Error kinds. Every error returned by this package, and by the session
// built on it, matches exactly one of these under errors.Is.
var (
	ErrConfig   = errors.New("configuration error")
	ErrAlloc    = errors.New("allocation error")
	ErrCommand  = errors.New("command error")
	ErrRuntime  = errors.New("runtime error")
	ErrProtocol = errors.New("protocol violation")
)

var (
	ErrBelowMinimum = errors.New("buffer count below port minimum")
	ErrSetRejected  = errors.New("parameter rejected by component")
	ErrTimeout      = errors.New("timed out")

	errForeignBuffer = errors.New("buffer does not belong to this pool")
)

// Error describes a failed protocol operation.
type Error struct {
	Kind error     // one of ErrConfig, ErrAlloc, ErrCommand, ErrRuntime, ErrProtocol
	Op   string    // operation, e.g. "set buffer count"
	Port PortIndex // AllPorts when the operation is not port specific
	Err  error
}

// NewError builds an *Error of the given kind.
func NewError(kind error, op string, port PortIndex, err error) *Error {
	return &Error{Kind: kind, Op: op, Port: port, Err: err}
}

func (e *Error) Error() string {
	where := ""
	if e.Port != AllPorts {
		where = " on " + e.Port.String() + " port"
	}
	if e.Err == nil {
		return fmt.Sprintf("%v: %s%s", e.Kind, e.Op, where)
	}
	return fmt.Sprintf("%v: %s%s: %v", e.Kind, e.Op, where, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error's kind as well as its wrapped chain.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// ErrorCode is OMX_ERRORTYPE. A component returns one of these from a
// failed call and reports them asynchronously through ErrorRaised.
type ErrorCode uint32

const (
	ErrorNone                        ErrorCode = 0
	ErrorInsufficientResources       ErrorCode = 0x80001000
	ErrorUndefined                   ErrorCode = 0x80001001
	ErrorInvalidComponentName        ErrorCode = 0x80001002
	ErrorComponentNotFound           ErrorCode = 0x80001003
	ErrorInvalidComponent            ErrorCode = 0x80001004
	ErrorBadParameter                ErrorCode = 0x80001005
	ErrorNotImplemented              ErrorCode = 0x80001006
	ErrorUnderflow                   ErrorCode = 0x80001007
	ErrorOverflow                    ErrorCode = 0x80001008
	ErrorHardware                    ErrorCode = 0x80001009
	ErrorInvalidState                ErrorCode = 0x8000100A
	ErrorStreamCorrupt               ErrorCode = 0x8000100B
	ErrorPortsNotCompatible          ErrorCode = 0x8000100C
	ErrorResourcesLost               ErrorCode = 0x8000100D
	ErrorNoMore                      ErrorCode = 0x8000100E
	ErrorVersionMismatch             ErrorCode = 0x8000100F
	ErrorNotReady                    ErrorCode = 0x80001010
	ErrorTimeout                     ErrorCode = 0x80001011
	ErrorSameState                   ErrorCode = 0x80001012
	ErrorResourcesPreempted          ErrorCode = 0x80001013
	ErrorIncorrectStateTransition    ErrorCode = 0x80001017
	ErrorIncorrectStateOperation     ErrorCode = 0x80001018
	ErrorUnsupportedSetting          ErrorCode = 0x80001019
	ErrorUnsupportedIndex            ErrorCode = 0x8000101A
	ErrorBadPortIndex                ErrorCode = 0x8000101B
	ErrorPortUnpopulated             ErrorCode = 0x8000101C
	ErrorDynamicResourcesUnavailable ErrorCode = 0x8000101E
)

var errorCodeNames = map[ErrorCode]string{
	ErrorNone:                        "OMX_ErrorNone",
	ErrorInsufficientResources:       "OMX_ErrorInsufficientResources",
	ErrorUndefined:                   "OMX_ErrorUndefined",
	ErrorInvalidComponentName:        "OMX_ErrorInvalidComponentName",
	ErrorComponentNotFound:           "OMX_ErrorComponentNotFound",
	ErrorInvalidComponent:            "OMX_ErrorInvalidComponent",
	ErrorBadParameter:                "OMX_ErrorBadParameter",
	ErrorNotImplemented:              "OMX_ErrorNotImplemented",
	ErrorUnderflow:                   "OMX_ErrorUnderflow",
	ErrorOverflow:                    "OMX_ErrorOverflow",
	ErrorHardware:                    "OMX_ErrorHardware",
	ErrorInvalidState:                "OMX_ErrorInvalidState",
	ErrorStreamCorrupt:               "OMX_ErrorStreamCorrupt",
	ErrorPortsNotCompatible:          "OMX_ErrorPortsNotCompatible",
	ErrorResourcesLost:               "OMX_ErrorResourcesLost",
	ErrorNoMore:                      "OMX_ErrorNoMore",
	ErrorVersionMismatch:             "OMX_ErrorVersionMismatch",
	ErrorNotReady:                    "OMX_ErrorNotReady",
	ErrorTimeout:                     "OMX_ErrorTimeout",
	ErrorSameState:                   "OMX_ErrorSameState",
	ErrorResourcesPreempted:          "OMX_ErrorResourcesPreempted",
	ErrorIncorrectStateTransition:    "OMX_ErrorIncorrectStateTransition",
	ErrorIncorrectStateOperation:     "OMX_ErrorIncorrectStateOperation",
	ErrorUnsupportedSetting:          "OMX_ErrorUnsupportedSetting",
	ErrorUnsupportedIndex:            "OMX_ErrorUnsupportedIndex",
	ErrorBadPortIndex:                "OMX_ErrorBadPortIndex",
	ErrorPortUnpopulated:             "OMX_ErrorPortUnpopulated",
	ErrorDynamicResourcesUnavailable: "OMX_ErrorDynamicResourcesUnavailable",
}

func (c ErrorCode) Error() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("OMX error 0x%x", uint32(c))
}

func (c ErrorCode) String() string {
	return c.Error()
}

// Severe reports whether a component that raised this code asynchronously
// can no longer be expected to make progress.
func (c ErrorCode) Severe() bool {
	switch c {
	case ErrorInsufficientResources, ErrorHardware, ErrorInvalidState,
		ErrorResourcesLost, ErrorResourcesPreempted, ErrorTimeout,
		ErrorInvalidComponent, ErrorDynamicResourcesUnavailable:
		return true
	}
	return false
}

// AsErrorCode extracts an ErrorCode from err, if there is one.
func AsErrorCode(err error) (ErrorCode, bool) {
	var code ErrorCode
	if errors.As(err, &code) {
		return code, true
	}
	return 0, false
}
