package audio

// FrameBuffer accumulates capture batches for one recording session.
// It is not safe for concurrent use; callers guard it with their own lock.
type FrameBuffer struct {
	batches   [][]float32
	frames    int
	maxFrames int
}

// NewFrameBuffer creates a buffer holding at most maxFrames samples.
// A non-positive maxFrames means unbounded.
func NewFrameBuffer(maxFrames int) *FrameBuffer {
	return &FrameBuffer{maxFrames: maxFrames}
}

// Append copies batch into the buffer. It returns false when some or all of
// the batch was dropped because the buffer reached its limit.
func (b *FrameBuffer) Append(batch []float32) bool {
	if len(batch) == 0 {
		return true
	}

	n := len(batch)
	full := true
	if b.maxFrames > 0 && b.frames+n > b.maxFrames {
		n = b.maxFrames - b.frames
		full = false
	}
	if n <= 0 {
		return false
	}

	cp := make([]float32, n)
	copy(cp, batch[:n])
	b.batches = append(b.batches, cp)
	b.frames += n
	return full
}

// Len returns the number of buffered samples.
func (b *FrameBuffer) Len() int {
	return b.frames
}

// Batches returns the number of buffered batches.
func (b *FrameBuffer) Batches() int {
	return len(b.batches)
}

// Full reports whether the buffer reached its limit.
func (b *FrameBuffer) Full() bool {
	return b.maxFrames > 0 && b.frames >= b.maxFrames
}

// Drain returns all buffered samples in capture order and empties the buffer.
func (b *FrameBuffer) Drain() []float32 {
	if b.frames == 0 {
		b.Reset()
		return nil
	}
	out := make([]float32, 0, b.frames)
	for _, batch := range b.batches {
		out = append(out, batch...)
	}
	b.Reset()
	return out
}

// Reset discards buffered samples.
func (b *FrameBuffer) Reset() {
	b.batches = nil
	b.frames = 0
}
