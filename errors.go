package alohaomx

import (
	errors "golang.org/x/xerrors"

	"github.com/lanikai/alohaomx/internal/omx"
)

// Error kinds reported by Session.Run. Use errors.Is to classify a failure.
var (
	ErrConfig   = omx.ErrConfig
	ErrAlloc    = omx.ErrAlloc
	ErrCommand  = omx.ErrCommand
	ErrRuntime  = omx.ErrRuntime
	ErrProtocol = omx.ErrProtocol
)

var (
	ErrAlreadyRun = errors.New("session already run")
	ErrNotOwned   = errors.New("buffer not owned by component")

	errFatal        = errors.New("session failed")
	errStreamActive = errors.New("stream has not ended")
)
