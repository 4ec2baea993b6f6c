// Package mic captures the default input device through PortAudio.
package mic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"holdtalk/internal/ports"
)

// ErrStreamStalled is returned by Wait when the device stops delivering audio,
// for example after it was unplugged.
var ErrStreamStalled = errors.New("input stream stalled")

const stallBatches = 16

// Config describes the capture stream.
type Config struct {
	SampleRate  int
	BatchFrames int
	// StallTimeout is how long the stream may go without a batch before Wait
	// reports ErrStreamStalled. Zero derives it from the batch period.
	StallTimeout time.Duration
}

type callback = func(in []float32, info portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags)

// stream is the part of *portaudio.Stream the source drives.
type stream interface {
	Start() error
	Stop() error
	Close() error
}

// Source is a continuously running mono input stream. PortAudio invokes the
// frame handler on its own callback thread once per batch.
type Source struct {
	cfg Config
	log zerolog.Logger

	initialize func() error
	terminate  func() error
	open       func(sampleRate float64, frames int, cb callback) (stream, error)

	lastBatch atomic.Int64
	overflows atomic.Int64

	mu      sync.Mutex
	stream  stream
	started bool
	closed  bool
	err     error

	done     chan struct{}
	doneOnce sync.Once
	waitErr  error
}

func NewSource(cfg Config, log zerolog.Logger) *Source {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.BatchFrames <= 0 {
		cfg.BatchFrames = 512
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = defaultStallTimeout(cfg)
	}
	return &Source{
		cfg:        cfg,
		log:        log,
		initialize: portaudio.Initialize,
		terminate:  portaudio.Terminate,
		open: func(sampleRate float64, frames int, cb callback) (stream, error) {
			st, err := portaudio.OpenDefaultStream(1, 0, sampleRate, frames, cb)
			if err != nil {
				return nil, err
			}
			return st, nil
		},
		done: make(chan struct{}),
	}
}

func defaultStallTimeout(cfg Config) time.Duration {
	period := time.Duration(cfg.BatchFrames) * time.Second / time.Duration(cfg.SampleRate)
	if d := stallBatches * period; d > time.Second {
		return d
	}
	return time.Second
}

var _ ports.FrameSource = (*Source)(nil)

func (s *Source) Start(ctx context.Context, handler ports.FrameHandler) error {
	if handler == nil {
		return errors.New("portaudio capture: nil frame handler")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("portaudio capture: already started")
	}

	if err := s.initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	s.lastBatch.Store(time.Now().UnixNano())
	st, err := s.open(float64(s.cfg.SampleRate), s.cfg.BatchFrames, func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		s.lastBatch.Store(time.Now().UnixNano())
		if flags&portaudio.InputOverflow != 0 {
			n := s.overflows.Add(1)
			s.log.Warn().Int64("overflows", n).Msg("input overflow, samples lost")
		}
		handler(in)
	})
	if err != nil {
		_ = s.terminate()
		return fmt.Errorf("open default input stream: %w", err)
	}
	if err := st.Start(); err != nil {
		_ = st.Close()
		_ = s.terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	s.stream = st
	s.started = true

	go s.watch(ctx)
	return nil
}

// watch closes the source when ctx is done and ends Wait with
// ErrStreamStalled when batches stop arriving.
func (s *Source) watch(ctx context.Context) {
	interval := s.cfg.StallTimeout / 4
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case now := <-ticker.C:
			idle := now.Sub(time.Unix(0, s.lastBatch.Load()))
			if idle > s.cfg.StallTimeout {
				s.log.Error().Dur("idle", idle).Msg("no audio from input device")
				s.finish(fmt.Errorf("%w: no audio for %s", ErrStreamStalled, idle.Round(time.Millisecond)))
				return
			}
		}
	}
}

// Overflows returns how many callbacks reported lost input samples.
func (s *Source) Overflows() int64 {
	return s.overflows.Load()
}

// Wait blocks until the stream is closed or stalls. It returns nil after Close
// or cancellation and ErrStreamStalled when the device went quiet.
func (s *Source) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("portaudio capture: not started")
	}
	<-s.done
	return s.waitErr
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.closed {
		return s.err
	}
	s.closed = true
	defer s.finish(nil)

	if err := s.stream.Stop(); err != nil {
		s.err = fmt.Errorf("stop input stream: %w", err)
	}
	if err := s.stream.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("close input stream: %w", err)
	}
	if err := s.terminate(); err != nil && s.err == nil {
		s.err = fmt.Errorf("terminate portaudio: %w", err)
	}
	return s.err
}

func (s *Source) finish(err error) {
	s.doneOnce.Do(func() {
		s.waitErr = err
		close(s.done)
	})
}
