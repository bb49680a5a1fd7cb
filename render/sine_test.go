package render

import (
	"context"
	"math"
	"testing"
)

func TestSineNoNotesYieldsEmptyResult(t *testing.T) {
	s := NewSine()
	res, err := s.Render(context.Background(), &Config{SampleRate: 44100, Channels: 2})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.Frames() != 0 {
		t.Fatalf("frames = %d, want 0", res.Frames())
	}
	if res.SampleRate != 44100 || res.Channels != 2 {
		t.Fatalf("result format %d/%d, want 44100/2", res.SampleRate, res.Channels)
	}
}

func TestSinePitchedNote(t *testing.T) {
	s := NewSine()
	cfg := &Config{
		SampleRate: 44100,
		Channels:   1,
		Notes:      []Note{{StartSec: 0, DurationSec: 0.1, MIDINote: 69, Velocity: 127, Lyric: "a"}},
	}
	res, err := s.Render(context.Background(), cfg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.Frames() != 4410 {
		t.Fatalf("frames = %d, want 4410", res.Frames())
	}

	var peak float32
	crossings := 0
	for i, v := range res.PCM {
		if a := float32(math.Abs(float64(v))); a > peak {
			peak = a
		}
		if i > 0 && (res.PCM[i-1] < 0) != (v < 0) && v != 0 {
			crossings++
		}
	}
	// 440 Hz over 0.1 s is ~44 periods, so ~88 zero crossings.
	if crossings < 80 || crossings > 96 {
		t.Fatalf("zero crossings = %d, want ~88", crossings)
	}
	if peak < 0.15 || peak > 0.201 {
		t.Fatalf("peak = %f, want ~0.2", peak)
	}
}

func TestSineUnpitchedNoteIsSilent(t *testing.T) {
	s := NewSine()
	cfg := &Config{
		SampleRate: 44100,
		Channels:   1,
		Notes:      []Note{{StartSec: 0, DurationSec: 0.05, MIDINote: -1, Velocity: 127}},
	}
	res, err := s.Render(context.Background(), cfg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.Frames() == 0 {
		t.Fatal("expected frames for the note span")
	}
	for i, v := range res.PCM {
		if v != 0 {
			t.Fatalf("sample %d = %f, want silence", i, v)
		}
	}
}

func TestSineVelocityAndEnvelopeScaleAmplitude(t *testing.T) {
	peakFor := func(vel uint8, env *EnvCurve) float32 {
		s := NewSine()
		cfg := &Config{
			SampleRate: 44100,
			Channels:   1,
			Notes:      []Note{{StartSec: 0, DurationSec: 0.05, MIDINote: 69, Velocity: vel, Env: env}},
		}
		res, err := s.Render(context.Background(), cfg)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		var peak float32
		for _, v := range res.PCM {
			if a := float32(math.Abs(float64(v))); a > peak {
				peak = a
			}
		}
		return peak
	}

	full := peakFor(127, nil)
	half := peakFor(64, nil)
	if half >= full {
		t.Fatalf("velocity 64 peak %f not below velocity 127 peak %f", half, full)
	}

	damped := peakFor(127, &EnvCurve{Times: []float32{0}, Values: []float32{0.5}})
	if damped < 0.09 || damped > 0.101 {
		t.Fatalf("enveloped peak = %f, want ~0.1", damped)
	}
}

func TestSineMixClampsToUnity(t *testing.T) {
	s := NewSine()
	notes := make([]Note, 10)
	for i := range notes {
		notes[i] = Note{StartSec: 0, DurationSec: 0.05, MIDINote: 69, Velocity: 127}
	}
	res, err := s.Render(context.Background(), &Config{SampleRate: 44100, Channels: 1, Notes: notes})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var peak float32
	for _, v := range res.PCM {
		if a := float32(math.Abs(float64(v))); a > peak {
			peak = a
		}
	}
	if peak != 1.0 {
		t.Fatalf("peak = %f, want clamp at 1.0", peak)
	}
}

func TestSineChannelsCarryIdenticalSamples(t *testing.T) {
	s := NewSine()
	cfg := &Config{
		SampleRate: 44100,
		Channels:   2,
		Notes:      []Note{{StartSec: 0, DurationSec: 0.01, MIDINote: 60, Velocity: 100}},
	}
	res, err := s.Render(context.Background(), cfg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for f := 0; f < res.Frames(); f++ {
		if res.PCM[f*2] != res.PCM[f*2+1] {
			t.Fatalf("frame %d: channels differ (%f vs %f)", f, res.PCM[f*2], res.PCM[f*2+1])
		}
	}
}

func TestSinePhaseContinuityAcrossBlocks(t *testing.T) {
	const rate = 44100
	const block = 256
	s := NewSine()
	blockCfg := func() *Config {
		return &Config{
			SampleRate: rate,
			Channels:   1,
			Notes:      []Note{{StartSec: 0, DurationSec: float64(block) / rate, MIDINote: 69, Velocity: 127}},
		}
	}

	first, err := s.Render(context.Background(), blockCfg())
	if err != nil {
		t.Fatalf("first block: %v", err)
	}
	second, err := s.Render(context.Background(), blockCfg())
	if err != nil {
		t.Fatalf("second block: %v", err)
	}
	if first.Frames() != block || second.Frames() != block {
		t.Fatalf("block frames = %d/%d, want %d", first.Frames(), second.Frames(), block)
	}

	// The oscillator clock keeps running, so the second block starts where
	// a single longer render would have continued.
	want := float32(0.2 * math.Sin(2*math.Pi*440*float64(block)/rate))
	if diff := math.Abs(float64(second.PCM[0] - want)); diff > 1e-4 {
		t.Fatalf("second block starts at %f, want %f", second.PCM[0], want)
	}
}

func TestStepCurveSampling(t *testing.T) {
	c := &F0Curve{Times: []float32{0, 0.5, 1.0}, Hz: []float32{100, 200, 300}}
	cases := []struct {
		t    float64
		want float64
	}{
		{-0.1, 100},
		{0, 100},
		{0.49, 100},
		{0.5, 200},
		{0.99, 200},
		{1.0, 300},
		{5.0, 300},
	}
	for _, tc := range cases {
		if got := c.At(tc.t, 440); got != tc.want {
			t.Fatalf("At(%f) = %f, want %f", tc.t, got, tc.want)
		}
	}
	var nilCurve *F0Curve
	if got := nilCurve.At(0.5, 440); got != 440 {
		t.Fatalf("nil curve At = %f, want fallback 440", got)
	}
}

func TestMIDIToHz(t *testing.T) {
	if hz := MIDIToHz(69); math.Abs(hz-440) > 1e-9 {
		t.Fatalf("MIDIToHz(69) = %f, want 440", hz)
	}
	if hz := MIDIToHz(81); math.Abs(hz-880) > 1e-6 {
		t.Fatalf("MIDIToHz(81) = %f, want 880", hz)
	}
	if hz := MIDIToHz(-1); hz != 0 {
		t.Fatalf("MIDIToHz(-1) = %f, want 0", hz)
	}
}
