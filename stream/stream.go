package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/crlotwhite/ucra-go/internal/ring"
	"github.com/crlotwhite/ucra-go/render"
)

var (
	ErrInvalidArgument = errors.New("invalid stream argument")
	ErrClosed          = errors.New("stream is closed")
)

// Capacity floor in frames, roughly 93ms at 44.1kHz.
const defaultMinCapacity = 4096

// Config fixes the PCM format of a session. All fields must be positive
// and are immutable after Open.
type Config struct {
	SampleRate int
	Channels   int
	BlockSize  int
}

// Window is the absolute time span one refill renders for.
type Window struct {
	Start    float64
	Duration float64
}

func (w Window) End() float64 { return w.Start + w.Duration }

// PullFunc supplies the note segments covering the given window. It is
// invoked once per refill while the session lock is held: it must return
// promptly and must not call back into the same session.
type PullFunc func(win Window) ([]render.Note, error)

// Option configures a session at Open time.
type Option func(*Stream)

// WithRenderer replaces the built-in sine engine for this session. The
// session passes its own context to the renderer so Close can abort a
// render in flight.
func WithRenderer(r render.Renderer) Option {
	return func(s *Stream) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithOptions fixes the engine flags handed to the renderer on every
// refill, as key/value pairs in the flagmap output shape. The map is
// copied at Open; later mutation by the caller has no effect.
func WithOptions(options map[string]string) Option {
	return func(s *Stream) {
		if len(options) == 0 {
			return
		}
		s.options = make(map[string]string, len(options))
		for k, v := range options {
			s.options[k] = v
		}
	}
}

// Stream is a pull-based PCM session: a bounded ring of rendered frames
// that Read drains in arbitrary chunk sizes and refills lazily, one block
// at a time, from the caller's PullFunc and the configured renderer.
//
// Any number of goroutines may call Read on one session. Refill work runs
// on whichever goroutine's Read triggered it, while that goroutine holds
// the session lock, so at most one renderer invocation is in flight per
// session and readers serialize during a refill.
type Stream struct {
	cfg      Config
	pull     PullFunc
	renderer render.Renderer
	options  map[string]string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	cond      *sync.Cond
	buf       *ring.Buffer
	scratch   []float32
	closed    bool
	generated uint64
}

// Open validates the configuration and allocates the session. No audio is
// rendered yet; the first Read triggers the first refill.
func Open(cfg Config, pull PullFunc, opts ...Option) (*Stream, error) {
	if pull == nil {
		return nil, fmt.Errorf("%w: nil pull callback", ErrInvalidArgument)
	}
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 || cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: sample_rate=%d channels=%d block_size=%d",
			ErrInvalidArgument, cfg.SampleRate, cfg.Channels, cfg.BlockSize)
	}

	capacity := 4 * cfg.BlockSize
	if capacity < defaultMinCapacity {
		capacity = defaultMinCapacity
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		cfg:     cfg,
		pull:    pull,
		ctx:     ctx,
		cancel:  cancel,
		buf:     ring.New(capacity, cfg.Channels),
		scratch: make([]float32, cfg.BlockSize*cfg.Channels),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = render.NewSine()
	}
	return s, nil
}

// Config returns the session's immutable format.
func (s *Stream) Config() Config { return s.cfg }

// Read fills dst with the next len(dst)/Channels frames of interleaved
// PCM, in strict FIFO order, refilling the ring as needed. It blocks until
// the request is satisfied or the session is closed.
//
// A short count with a nil error means the session was closed while the
// read was in progress; the session produced no more frames. A refill
// failure surfaces the collaborator's error with zero frames copied. A read
// entered after Close returns ErrClosed.
func (s *Stream) Read(dst []float32) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("%w: nil stream", ErrInvalidArgument)
	}
	if len(dst)%s.cfg.Channels != 0 {
		return 0, fmt.Errorf("%w: buffer length %d is not a multiple of %d channels",
			ErrInvalidArgument, len(dst), s.cfg.Channels)
	}
	frames := len(dst) / s.cfg.Channels
	if frames == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	copied := 0
	for copied < frames && !s.closed {
		if s.buf.Available() == 0 {
			if err := s.refill(); err != nil {
				if s.ctx.Err() != nil {
					// Close canceled the refill; drain what we have.
					break
				}
				return 0, err
			}
		}
		if s.buf.Available() == 0 && !s.closed {
			// A refill legitimately produced nothing; wait for data
			// or for Close's broadcast.
			s.cond.Wait()
			continue
		}

		n := frames - copied
		if avail := s.buf.Available(); n > avail {
			n = avail
		}
		if n == 0 {
			continue
		}
		if err := s.buf.Read(dst[copied*s.cfg.Channels : (copied+n)*s.cfg.Channels]); err != nil {
			return 0, fmt.Errorf("drain ring: %w", err)
		}
		copied += n
	}
	return copied, nil
}

// refill renders one block into the ring. Callers hold the session lock.
// A pull or renderer failure aborts only this refill; the session stays
// open and usable.
func (s *Stream) refill() error {
	if s.closed {
		return ErrClosed
	}
	if s.buf.Free() < s.cfg.BlockSize {
		return nil
	}

	win := Window{
		Start:    float64(s.generated) / float64(s.cfg.SampleRate),
		Duration: float64(s.cfg.BlockSize) / float64(s.cfg.SampleRate),
	}
	notes, err := s.pull(win)
	if err != nil {
		return fmt.Errorf("pull window [%.3f +%.3f): %w", win.Start, win.Duration, err)
	}
	if err := s.renderBlock(win, notes); err != nil {
		return fmt.Errorf("render window [%.3f +%.3f): %w", win.Start, win.Duration, err)
	}

	// Cannot fail: the free-space check above reserved a full block.
	if err := s.buf.Write(s.scratch); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}
	s.generated += uint64(s.cfg.BlockSize)
	s.cond.Signal()
	return nil
}

// Close marks the session closed, wakes every blocked reader, and aborts a
// renderer call in flight. It is idempotent and safe to call from any
// goroutine, including while another goroutine is blocked in Read.
func (s *Stream) Close() error {
	if s == nil {
		return nil
	}
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	return nil
}
