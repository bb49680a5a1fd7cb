// Package wavio converts between the SDK's interleaved float32 PCM and
// 16-bit PCM WAV files.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrInvalidFormat = errors.New("invalid wav parameters")

// Encode writes pcm as a 16-bit PCM WAV. Samples outside [-1, 1] are
// clamped.
func Encode(w io.WriteSeeker, pcm []float32, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("%w: sample_rate=%d channels=%d", ErrInvalidFormat, sampleRate, channels)
	}
	if len(pcm)%channels != 0 {
		return fmt.Errorf("%w: %d samples do not divide into %d channels", ErrInvalidFormat, len(pcm), channels)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   make([]int, len(pcm)),
	}
	for i, s := range pcm {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}

	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// WriteFile encodes pcm into a WAV file at path.
func WriteFile(path string, pcm []float32, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	if err := Encode(f, pcm, sampleRate, channels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Decode reads an integer-PCM WAV and normalizes it to float32.
func Decode(r io.ReadSeeker) (pcm []float32, sampleRate, channels int, err error) {
	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, 0, 0, fmt.Errorf("%w: missing format chunk", ErrInvalidFormat)
	}

	depth := dec.BitDepth
	if depth == 0 {
		depth = 16
	}
	scale := float32(int(1) << (depth - 1))

	pcm = make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		pcm[i] = float32(s) / scale
	}
	return pcm, buf.Format.SampleRate, buf.Format.NumChannels, nil
}

// ReadFile decodes a WAV file from disk.
func ReadFile(path string) (pcm []float32, sampleRate, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open wav file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
