package usecase

import (
	"errors"
	"sync"
	"testing"
)

func TestCaptureControllerIgnoresFramesWhileIdle(t *testing.T) {
	t.Parallel()

	c := NewCaptureController(1, 0)
	c.Append([]float32{0.1, 0.2})
	if c.Buffered() != 0 {
		t.Fatalf("idle controller buffered %d samples", c.Buffered())
	}
	if frames, accepted := c.Stop(); frames != nil || accepted {
		t.Fatalf("stop without start must be a no-op")
	}
}

func TestCaptureControllerAcceptsAndDiscards(t *testing.T) {
	t.Parallel()

	c := NewCaptureController(4, 0)

	if err := c.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	c.Append([]float32{1, 2})
	frames, accepted := c.Stop()
	if accepted || len(frames) != 2 {
		t.Fatalf("expected short session to be discarded, got accepted=%v frames=%d", accepted, len(frames))
	}

	if err := c.Start(); err != nil {
		t.Fatalf("start after discard failed: %v", err)
	}
	if c.Buffered() != 0 {
		t.Fatalf("expected buffer cleared before new session")
	}
	c.Append([]float32{1, 2})
	c.Append([]float32{3, 4})
	frames, accepted = c.Stop()
	if !accepted {
		t.Fatalf("expected session at threshold to be accepted")
	}
	for i, want := range []float32{1, 2, 3, 4} {
		if frames[i] != want {
			t.Fatalf("frame %d: got %v want %v", i, frames[i], want)
		}
	}

	c.Append([]float32{5})
	if c.Buffered() != 0 {
		t.Fatalf("frames after stop must be dropped")
	}
}

func TestCaptureControllerBusyUntilDone(t *testing.T) {
	t.Parallel()

	c := NewCaptureController(1, 0)
	_ = c.Start()
	c.Append([]float32{1})
	if _, accepted := c.Stop(); !accepted {
		t.Fatalf("expected acceptance")
	}

	if err := c.Start(); !errors.Is(err, ErrPipelineBusy) {
		t.Fatalf("expected ErrPipelineBusy, got %v", err)
	}
	if c.Capturing() {
		t.Fatalf("rejected start must not begin capturing")
	}

	c.Done()
	if err := c.Start(); err != nil {
		t.Fatalf("start after done failed: %v", err)
	}
}

func TestCaptureControllerMaxFrames(t *testing.T) {
	t.Parallel()

	c := NewCaptureController(1, 5)
	_ = c.Start()
	if !c.Append([]float32{1, 2, 3}) {
		t.Fatalf("first batch should fit")
	}
	if c.Append([]float32{4, 5, 6}) {
		t.Fatalf("second batch should be truncated")
	}
	if c.Append([]float32{7}) {
		t.Fatalf("batch after limit should be dropped")
	}
	if c.Dropped() != 2 {
		t.Fatalf("expected 2 dropped batches, got %d", c.Dropped())
	}
	frames, accepted := c.Stop()
	if !accepted || len(frames) != 5 {
		t.Fatalf("expected 5 accepted frames, got %d accepted=%v", len(frames), accepted)
	}
}

func TestCaptureControllerStopRacesAppend(t *testing.T) {
	t.Parallel()

	const batch = 512
	for round := 0; round < 50; round++ {
		c := NewCaptureController(1, 0)
		_ = c.Start()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Append(make([]float32, batch))
			}
		}()

		frames, _ := c.Stop()
		wg.Wait()

		if len(frames)%batch != 0 {
			t.Fatalf("round %d: drained a partial batch (%d frames)", round, len(frames))
		}
		if c.Buffered() != 0 {
			t.Fatalf("round %d: frames leaked into buffer after stop", round)
		}
		c.Done()
	}
}
