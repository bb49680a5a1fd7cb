package ring

import "errors"

var (
	ErrCapacity = errors.New("write exceeds free space")
	ErrUnderrun = errors.New("read exceeds available frames")
)

// Buffer is a fixed-capacity circular store of interleaved audio frames.
// It holds no lock of its own; callers serialize access. The available
// count is tracked explicitly rather than derived from the cursors, so a
// full buffer and an empty buffer are never ambiguous.
type Buffer struct {
	data     []float32
	capacity int // frames
	channels int
	writePos int // frame index in [0, capacity)
	readPos  int
	avail    int // frames readable, 0 <= avail <= capacity
}

// New allocates a zeroed buffer holding capacity frames of the given
// channel count.
func New(capacity, channels int) *Buffer {
	return &Buffer{
		data:     make([]float32, capacity*channels),
		capacity: capacity,
		channels: channels,
	}
}

func (b *Buffer) Capacity() int { return b.capacity }

func (b *Buffer) Channels() int { return b.channels }

// Available reports how many frames can currently be read.
func (b *Buffer) Available() int { return b.avail }

// Free reports how many frames can currently be written.
func (b *Buffer) Free() int { return b.capacity - b.avail }

// Write copies len(src)/channels frames into the buffer in FIFO order.
// The copy splits into at most two segments when it wraps past the end of
// storage. Returns ErrCapacity, touching nothing, when the frame count
// exceeds the free space.
func (b *Buffer) Write(src []float32) error {
	frames := len(src) / b.channels
	if frames > b.Free() {
		return ErrCapacity
	}
	copied := 0
	for copied < frames {
		n := frames - copied
		if until := b.capacity - b.writePos; n > until {
			n = until
		}
		copy(b.data[b.writePos*b.channels:], src[copied*b.channels:(copied+n)*b.channels])
		b.writePos = (b.writePos + n) % b.capacity
		copied += n
	}
	b.avail += frames
	return nil
}

// Read copies len(dst)/channels frames out of the buffer in the order they
// were written, splitting at the wrap point exactly like Write. Returns
// ErrUnderrun, touching nothing, when the frame count exceeds the frames
// available.
func (b *Buffer) Read(dst []float32) error {
	frames := len(dst) / b.channels
	if frames > b.avail {
		return ErrUnderrun
	}
	copied := 0
	for copied < frames {
		n := frames - copied
		if until := b.capacity - b.readPos; n > until {
			n = until
		}
		copy(dst[copied*b.channels:(copied+n)*b.channels], b.data[b.readPos*b.channels:])
		b.readPos = (b.readPos + n) % b.capacity
		copied += n
	}
	b.avail -= frames
	return nil
}
