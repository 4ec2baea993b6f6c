package usecase

import (
	"errors"
	"sync"

	"holdtalk/internal/audio"
)

// ErrPipelineBusy is returned by Start while the previous session is still
// being transcribed or delivered.
var ErrPipelineBusy = errors.New("previous session still processing")

// CaptureController gates the always-on capture stream into per-session
// buffers. One mutex covers the flags and the buffer, so a batch is either
// appended before Stop drains or dropped after the flag flips.
type CaptureController struct {
	minFrames int

	mu        sync.Mutex
	capturing bool
	busy      bool
	buf       *audio.FrameBuffer
	dropped   int
}

// NewCaptureController creates a controller that discards sessions shorter
// than minFrames and stops growing sessions at maxFrames (0 = unbounded).
func NewCaptureController(minFrames, maxFrames int) *CaptureController {
	if minFrames < 1 {
		minFrames = 1
	}
	return &CaptureController{
		minFrames: minFrames,
		buf:       audio.NewFrameBuffer(maxFrames),
	}
}

// Append copies batch into the session if capturing. It returns false when
// the session is at its length limit and samples were dropped.
func (c *CaptureController) Append(batch []float32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return true
	}
	if !c.buf.Append(batch) {
		c.dropped++
		return false
	}
	return true
}

func (c *CaptureController) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrPipelineBusy
	}
	c.buf.Reset()
	c.dropped = 0
	c.capturing = true
	return nil
}

// Stop ends capture and drains the session. Sessions shorter than the
// minimum are returned with accepted=false and must not be processed.
// On acceptance the controller stays busy until Done.
func (c *CaptureController) Stop() (frames []float32, accepted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return nil, false
	}
	c.capturing = false
	frames = c.buf.Drain()
	if len(frames) < c.minFrames {
		return frames, false
	}
	c.busy = true
	return frames, true
}

// Done releases the busy flag after the pipeline returns.
func (c *CaptureController) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
}

func (c *CaptureController) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// Dropped returns how many batches the current or last session lost to the
// length limit.
func (c *CaptureController) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Buffered returns the number of samples held by the running session.
func (c *CaptureController) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}
