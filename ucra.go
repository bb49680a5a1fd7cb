// Package ucra is a Go SDK for pull-based voice synthesis streaming. A
// caller opens a stream.Stream with a pull callback supplying note
// segments per render window; the stream drains a bounded ring of PCM
// frames and lazily refills it through a render.Renderer, either the
// bundled sine reference engine or an external resampler described by a
// resampler.json manifest.
//
// This root package re-exports the handful of types most callers touch
// and maps Go errors onto the fixed status codes other language bindings
// rely on.
package ucra

import (
	"github.com/crlotwhite/ucra-go/render"
	"github.com/crlotwhite/ucra-go/stream"
)

// Version of the SDK.
const Version = "0.3.0"

// Re-exported aliases so simple consumers need only this import.
type (
	Config   = stream.Config
	Window   = stream.Window
	Stream   = stream.Stream
	PullFunc = stream.PullFunc
	Note     = render.Note
)

// Open opens a streaming synthesis session. See stream.Open.
func Open(cfg Config, pull PullFunc, opts ...stream.Option) (*Stream, error) {
	return stream.Open(cfg, pull, opts...)
}

// WithRenderer injects a renderer other than the bundled sine engine.
func WithRenderer(r render.Renderer) stream.Option {
	return stream.WithRenderer(r)
}
