package ports

import (
	"context"
	"time"

	"holdtalk/internal/domain"
)

// FrameHandler receives one batch of mono float32 samples. The slice may be
// reused by the caller once the handler returns.
type FrameHandler func(batch []float32)

// FrameSource is a continuously running microphone stream.
type FrameSource interface {
	Start(ctx context.Context, handler FrameHandler) error
	// Wait blocks until the stream ends and returns its terminal error.
	Wait() error
	Close() error
}

// KeyListener delivers input-device events until ctx is done.
type KeyListener interface {
	Listen(ctx context.Context, handler func(domain.KeyEvent)) error
}

// Encoder writes a finished session to the audio artifact and returns its path.
type Encoder interface {
	Encode(samples []float32) (string, error)
}

// Transcriber runs speech recognition over an encoded artifact.
type Transcriber interface {
	Transcribe(ctx context.Context, artifactPath string) (domain.Transcript, error)
}

// Rewriter transforms transcripts using deterministic rules.
type Rewriter interface {
	Apply(text string) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// Paster synthesizes the platform paste shortcut into the focused window.
type Paster interface {
	Paste(ctx context.Context) error
}

// CuePlayer plays short audible feedback without blocking the caller.
type CuePlayer interface {
	Play(cue domain.Cue)
}

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(title, message string) error
}

// EventSink receives session lifecycle events.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	TranscriptDelivered(result domain.SessionResult)
	SessionError(code domain.ErrorCode, detail string)
}

// Metrics records operational measurements of the pipeline.
type Metrics interface {
	SessionFinished(reason domain.SessionStateReason, frames int, sampleRate int)
	TranscriptionObserved(d time.Duration, ok bool)
	PipelineObserved(d time.Duration)
	BatchDropped()
	DeliveryFailed(stage domain.ErrorCode)
}
