package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"holdtalk/internal/domain"
	"holdtalk/internal/logging"
	"holdtalk/internal/ports"
)

// Config controls push-to-talk recording behavior.
type Config struct {
	Trigger    domain.KeySpec
	SampleRate int
	MinFrames  int
	MaxFrames  int
}

// Dependencies are the adapters a Dictation drives. Paster, Cues, Notifier,
// Rewriter and Metrics are optional.
type Dependencies struct {
	Encoder     ports.Encoder
	Transcriber ports.Transcriber
	Rewriter    ports.Rewriter
	Clipboard   ports.Clipboard
	Paster      ports.Paster
	Cues        ports.CuePlayer
	Notifier    ports.Notifier
	Events      ports.EventSink
	Metrics     ports.Metrics
	Console     io.Writer
	Logger      zerolog.Logger
}

// Dictation orchestrates hold-to-talk sessions: the trigger key gates the
// capture stream, and on release the session runs through the pipeline on
// the key-handling goroutine.
type Dictation struct {
	trigger    *TriggerStateMachine
	capture    *CaptureController
	pipeline   sessionPipeline
	dispatcher *OutputDispatcher
	events     ports.EventSink
	metrics    ports.Metrics
	cfg        Config
	log        zerolog.Logger

	mu        sync.Mutex
	state     domain.SessionState
	recording bool
}

func NewDictation(deps Dependencies, cfg Config) *Dictation {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}

	dispatcher := NewOutputDispatcher(
		deps.Clipboard,
		deps.Paster,
		deps.Cues,
		deps.Notifier,
		deps.Events,
		deps.Metrics,
		deps.Console,
		logging.Component(deps.Logger, "output"),
	)

	return &Dictation{
		trigger: NewTriggerStateMachine(cfg.Trigger),
		capture: NewCaptureController(cfg.MinFrames, cfg.MaxFrames),
		pipeline: sessionPipeline{
			encoder:     deps.Encoder,
			transcriber: deps.Transcriber,
			rewriter:    deps.Rewriter,
			dispatcher:  dispatcher,
			events:      deps.Events,
			metrics:     deps.Metrics,
			sampleRate:  cfg.SampleRate,
			log:         logging.Component(deps.Logger, "pipeline"),
		},
		dispatcher: dispatcher,
		events:     deps.Events,
		metrics:    deps.Metrics,
		cfg:        cfg,
		log:        logging.Component(deps.Logger, "dictation"),
		state:      domain.SessionStateIdle,
	}
}

// HandleFrames is the capture stream callback.
func (d *Dictation) HandleFrames(batch []float32) {
	if !d.capture.Append(batch) {
		d.metrics.BatchDropped()
	}
}

// HandleKey feeds one key event through the trigger. A release that ends an
// accepted session blocks until the transcript has been delivered.
func (d *Dictation) HandleKey(ctx context.Context, ev domain.KeyEvent) {
	trigger, ok := d.trigger.Handle(ev)
	if !ok {
		return
	}
	switch trigger {
	case domain.StartCapture:
		d.startRecording()
	case domain.StopCapture:
		d.stopRecording(ctx)
	}
}

func (d *Dictation) startRecording() {
	if err := d.capture.Start(); err != nil {
		d.log.Warn().Err(err).Msg("recording rejected")
		d.events.SessionStateChanged(d.currentState(), domain.SessionReasonRecordingRejected)
		return
	}
	d.setState(domain.SessionStateRecording, true)
	d.dispatcher.Cue(domain.CueArmed)
	d.log.Debug().Msg("recording")
	d.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
}

func (d *Dictation) stopRecording(ctx context.Context) {
	if !d.isRecording() {
		return
	}
	released := time.Now()
	frames, accepted := d.capture.Stop()
	if dropped := d.capture.Dropped(); dropped > 0 {
		d.log.Warn().Int("dropped_batches", dropped).Int("max_frames", d.cfg.MaxFrames).Msg("recording hit maximum length")
	}

	if !accepted {
		d.setState(domain.SessionStateIdle, false)
		d.log.Info().Int("frames", len(frames)).Int("min_frames", d.cfg.MinFrames).Msg("recording too short, discarded")
		d.metrics.SessionFinished(domain.SessionReasonRecordingDiscarded, len(frames), d.cfg.SampleRate)
		d.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
		return
	}

	d.dispatcher.Cue(domain.CueRelease)
	d.setState(domain.SessionStateProcessing, false)
	defer func() {
		d.capture.Done()
		d.setState(domain.SessionStateIdle, false)
	}()

	d.pipeline.Run(ctx, frames, released)
}

// Run starts the capture stream and the key listener and blocks until ctx is
// done or either of them fails. The stream is always closed on return.
func (d *Dictation) Run(ctx context.Context, source ports.FrameSource, listener ports.KeyListener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := source.Start(ctx, d.HandleFrames); err != nil {
		d.events.SessionError(domain.ErrorCodeAudioStream, err.Error())
		return fmt.Errorf("start capture stream: %w", err)
	}

	streamDone := make(chan error, 1)
	go func() {
		err := source.Wait()
		if err != nil {
			d.events.SessionError(domain.ErrorCodeAudioStream, err.Error())
		}
		streamDone <- err
		cancel()
	}()

	d.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
	listenErr := listener.Listen(ctx, func(ev domain.KeyEvent) {
		d.HandleKey(ctx, ev)
	})

	cancel()
	closeErr := source.Close()
	streamErr := <-streamDone

	switch {
	case streamErr != nil:
		return fmt.Errorf("capture stream: %w", streamErr)
	case listenErr != nil:
		return fmt.Errorf("key listener: %w", listenErr)
	case closeErr != nil && !errors.Is(closeErr, context.Canceled):
		return fmt.Errorf("close capture stream: %w", closeErr)
	}
	return nil
}

// Status returns the current session status.
func (d *Dictation) Status() domain.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return domain.Status{State: d.state, Active: d.state != domain.SessionStateIdle}
}

func (d *Dictation) setState(state domain.SessionState, recording bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state
	d.recording = recording
}

func (d *Dictation) currentState() domain.SessionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dictation) isRecording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recording
}

type nopMetrics struct{}

func (nopMetrics) SessionFinished(domain.SessionStateReason, int, int) {}
func (nopMetrics) TranscriptionObserved(time.Duration, bool)           {}
func (nopMetrics) PipelineObserved(time.Duration)                      {}
func (nopMetrics) BatchDropped()                                       {}
func (nopMetrics) DeliveryFailed(domain.ErrorCode)                     {}
