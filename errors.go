package ucra

import (
	"errors"

	"github.com/crlotwhite/ucra-go/flagmap"
	"github.com/crlotwhite/ucra-go/manifest"
	"github.com/crlotwhite/ucra-go/render"
	"github.com/crlotwhite/ucra-go/stream"
)

// Status is the ABI-stable result code surfaced to language bindings.
// The numeric values are frozen; reordering them breaks every existing
// binding.
type Status uint32

const (
	StatusOK              Status = 0
	StatusInvalidArgument Status = 1
	StatusOutOfMemory     Status = 2
	StatusNotSupported    Status = 3
	StatusInternal        Status = 4
	StatusNotFound        Status = 5
	StatusInvalidJSON     Status = 6
	StatusInvalidManifest Status = 7
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidArgument:
		return "invalid-argument"
	case StatusOutOfMemory:
		return "out-of-memory"
	case StatusNotSupported:
		return "not-supported"
	case StatusInternal:
		return "internal-error"
	case StatusNotFound:
		return "not-found"
	case StatusInvalidJSON:
		return "invalid-json"
	case StatusInvalidManifest:
		return "invalid-manifest"
	default:
		return "unknown"
	}
}

// StatusOf maps an error from any SDK package onto its status code.
// A nil error is StatusOK; errors the SDK does not recognize, including
// collaborator errors passed through a refill, map to StatusInternal.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, stream.ErrInvalidArgument),
		errors.Is(err, render.ErrInvalidConfig):
		return StatusInvalidArgument
	case errors.Is(err, manifest.ErrNotFound),
		errors.Is(err, flagmap.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, manifest.ErrInvalidJSON),
		errors.Is(err, flagmap.ErrInvalidJSON):
		return StatusInvalidJSON
	case errors.Is(err, manifest.ErrInvalidManifest),
		errors.Is(err, flagmap.ErrInvalidRules):
		return StatusInvalidManifest
	default:
		return StatusInternal
	}
}
