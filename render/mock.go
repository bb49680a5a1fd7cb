package render

import (
	"context"
	"sync"
)

// Mock is a scripted renderer for exercising callers without real
// synthesis. It emits a constant sample value across the requested note
// span and can be told to fail its first calls.
type Mock struct {
	Fill      float32
	Err       error
	FailTimes int // with Err set: fail this many calls, then recover; 0 fails every call

	mu    sync.Mutex
	calls int
}

func NewMock(fill float32) *Mock { return &Mock{Fill: fill} }

func (m *Mock) Describe() string { return "mock engine" }

// Calls reports how many times Render was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) Render(ctx context.Context, cfg *Config) (*Result, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls++
	fail := m.Err != nil && (m.FailTimes == 0 || m.calls <= m.FailTimes)
	m.mu.Unlock()
	if fail {
		return nil, m.Err
	}

	rate := cfg.SampleRate
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
		return &Result{Channels: channels, SampleRate: rate}, nil
	}
	frames := int(totalDur*float64(rate) + 0.5)
	if frames == 0 {
		frames = 1
	}

	pcm := make([]float32, frames*channels)
	for i := range pcm {
		pcm[i] = m.Fill
	}
	return &Result{PCM: pcm, Channels: channels, SampleRate: rate}, nil
}
