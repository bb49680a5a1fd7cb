package render

import (
	"context"
	"math"
	"sync"
)

const (
	defaultSampleRate = 44100
	sineGain          = 0.2
)

// Sine is the bundled reference engine: naive additive synthesis with one
// sine per note, velocity and envelope scaling, and a hard clamp on the
// mix. The oscillator clock carries across Render calls on the same
// instance, so consecutive block renders stay phase-continuous.
type Sine struct {
	mu        sync.Mutex
	generated uint64
}

func NewSine() *Sine { return &Sine{} }

func (s *Sine) Describe() string { return "UCRA Reference Engine (sine) v1.0" }

func (s *Sine) Render(ctx context.Context, cfg *Config) (*Result, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rate := float64(cfg.SampleRate)
	if rate <= 0 {
		rate = defaultSampleRate
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}

	var totalDur float64
	for _, n := range cfg.Notes {
		if end := n.End(); end > totalDur {
			totalDur = end
		}
	}
	if totalDur <= 0 {
		return &Result{Channels: channels, SampleRate: int(rate)}, nil
	}

	frames := uint64(totalDur*rate + 0.5)
	if frames == 0 {
		frames = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pcm := make([]float32, frames*uint64(channels))
	for n := uint64(0); n < frames; n++ {
		if n%8192 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		t := float64(n) / rate
		oscT := float64(s.generated+n) / rate
		mix := 0.0
		for i := range cfg.Notes {
			note := &cfg.Notes[i]
			if t < note.StartSec || t > note.End() {
				continue
			}
			relT := t - note.StartSec
			f0 := note.F0.At(relT, MIDIToHz(note.MIDINote))
			if f0 <= 0 {
				continue
			}
			env := note.Env.At(relT, 1.0)
			vel := float64(note.Velocity) / 127.0
			mix += sineGain * vel * env * math.Sin(2*math.Pi*f0*oscT)
		}
		if mix > 1.0 {
			mix = 1.0
		} else if mix < -1.0 {
			mix = -1.0
		}
		sample := float32(mix)
		for ch := 0; ch < channels; ch++ {
			pcm[n*uint64(channels)+uint64(ch)] = sample
		}
	}
	s.generated += frames

	return &Result{PCM: pcm, Channels: channels, SampleRate: int(rate)}, nil
}
