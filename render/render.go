package render

import (
	"context"
	"errors"
	"math"
)

var ErrInvalidConfig = errors.New("invalid render config")

// Note is one synthesis segment: a lyric sung at a pitch over a time span.
// MIDINote is -1 for unpitched segments; an F0 curve, when present, takes
// precedence over the MIDI pitch.
type Note struct {
	StartSec    float64   `json:"start_sec"`
	DurationSec float64   `json:"duration_sec"`
	MIDINote    int       `json:"midi_note"`
	Velocity    uint8     `json:"velocity"`
	Lyric       string    `json:"lyric,omitempty"`
	F0          *F0Curve  `json:"f0,omitempty"`
	Env         *EnvCurve `json:"env,omitempty"`
}

// End returns the absolute end time of the note in seconds.
func (n Note) End() float64 { return n.StartSec + n.DurationSec }

// F0Curve is a step-wise pitch contour. Times are seconds relative to the
// note start and must be ascending.
type F0Curve struct {
	Times []float32 `json:"times"`
	Hz    []float32 `json:"hz"`
}

// At samples the curve at t seconds, holding each point until the next one.
// Before the first point the first value applies; an empty curve yields the
// fallback.
func (c *F0Curve) At(t, fallback float64) float64 {
	if c == nil || len(c.Times) == 0 || len(c.Hz) == 0 {
		return fallback
	}
	idx := 0
	for i, ts := range c.Times {
		if float64(ts) > t {
			break
		}
		idx = i
	}
	if idx >= len(c.Hz) {
		idx = len(c.Hz) - 1
	}
	return float64(c.Hz[idx])
}

// EnvCurve is a step-wise amplitude envelope, sampled like F0Curve.
type EnvCurve struct {
	Times  []float32 `json:"times"`
	Values []float32 `json:"values"`
}

func (c *EnvCurve) At(t, fallback float64) float64 {
	if c == nil || len(c.Times) == 0 || len(c.Values) == 0 {
		return fallback
	}
	idx := 0
	for i, ts := range c.Times {
		if float64(ts) > t {
			break
		}
		idx = i
	}
	if idx >= len(c.Values) {
		idx = len(c.Values) - 1
	}
	return float64(c.Values[idx])
}

// Config describes one render request. Options carries engine flags as
// key/value pairs, typically produced by the flagmap package.
type Config struct {
	SampleRate int               `json:"sample_rate"`
	Channels   int               `json:"channels"`
	Notes      []Note            `json:"notes,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
}

// Result holds interleaved float32 PCM produced by a renderer.
type Result struct {
	PCM        []float32
	Channels   int
	SampleRate int
	Metadata   map[string]string
}

// Frames returns the number of audio frames in the result.
func (r *Result) Frames() int {
	if r == nil || r.Channels <= 0 {
		return 0
	}
	return len(r.PCM) / r.Channels
}

// Renderer turns note segments into PCM. Implementations own whatever
// continuity state they need across calls; handles are not safe for
// concurrent use unless documented otherwise.
type Renderer interface {
	Render(ctx context.Context, cfg *Config) (*Result, error)
}

// Describer is implemented by renderers that can report an identity string.
type Describer interface {
	Describe() string
}

// MIDIToHz converts a MIDI note number to a frequency in Hz. Negative
// numbers denote unpitched segments and map to 0.
func MIDIToHz(midi int) float64 {
	if midi < 0 {
		return 0
	}
	return 440.0 * math.Pow(2, (float64(midi)-69)/12)
}
