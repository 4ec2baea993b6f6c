package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"holdtalk/internal/ports"
)

// ErrStreamEnded is returned by Wait when the capture process exits on its own.
var ErrStreamEnded = errors.New("capture stream ended unexpectedly")

// FFMPEGConfig describes how ffmpeg should open the microphone.
type FFMPEGConfig struct {
	SampleRate  int
	BatchFrames int
	InputFormat string
	InputDevice string
}

// FFMPEGSource streams mono s16le microphone audio from an ffmpeg subprocess
// and hands fixed-size float32 batches to the frame handler.
type FFMPEGSource struct {
	command string
	cfg     FFMPEGConfig

	mu      sync.Mutex
	session *ffmpegSession
}

func NewFFMPEGSource(command string, cfg FFMPEGConfig) *FFMPEGSource {
	if command == "" {
		command = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.BatchFrames <= 0 {
		cfg.BatchFrames = 512
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return &FFMPEGSource{command: command, cfg: cfg}
}

var _ ports.FrameSource = (*FFMPEGSource)(nil)

func (s *FFMPEGSource) Start(ctx context.Context, handler ports.FrameHandler) error {
	if handler == nil {
		return errors.New("ffmpeg capture: nil frame handler")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return errors.New("ffmpeg capture: already started")
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", s.cfg.InputFormat,
		"-i", s.cfg.InputDevice,
		"-ac", "1",
		"-ar", strconv.Itoa(s.cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, stringsTrimSpaceSafe(stderr.String()))
		}
		return errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	session := &ffmpegSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		done:    make(chan struct{}),
	}
	s.session = session

	go session.pump(handler, s.cfg.BatchFrames)
	return nil
}

// Wait blocks until the pump stops. It returns nil after Close and
// ErrStreamEnded when ffmpeg went away by itself.
func (s *FFMPEGSource) Wait() error {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return errors.New("ffmpeg capture: not started")
	}
	<-session.done
	return session.pumpErr
}

func (s *FFMPEGSource) Close() error {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.Stop()
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	done    chan struct{}
	pumpErr error

	stopMu   sync.Mutex
	stopping bool
	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) pump(handler ports.FrameHandler, batchFrames int) {
	defer close(s.done)

	raw := make([]byte, batchFrames*2)
	var batch []float32
	for {
		n, err := io.ReadFull(s.stdout, raw)
		if n > 0 {
			batch = DecodeS16LE(raw[:n], batch)
			if len(batch) > 0 {
				handler(batch)
			}
		}
		if err != nil {
			if s.isStopping() {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed) {
				s.pumpErr = ErrStreamEnded
				return
			}
			s.pumpErr = fmt.Errorf("read ffmpeg output: %w", err)
			return
		}
	}
}

func (s *ffmpegSession) isStopping() bool {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	return s.stopping
}

func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		s.stopMu.Lock()
		s.stopping = true
		s.stopMu.Unlock()

		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
	})

	<-s.done
	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
