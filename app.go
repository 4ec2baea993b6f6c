package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"holdtalk/internal/bootstrap"
	"holdtalk/internal/config"
	"holdtalk/internal/domain"
	"holdtalk/internal/logging"
	"holdtalk/internal/metrics"
)

// App is the command-line application root. It doubles as the session event
// sink and reports lifecycle changes through the logger.
type App struct {
	log zerolog.Logger
	out io.Writer
}

func NewApp(log zerolog.Logger, out io.Writer) *App {
	return &App{log: logging.Component(log, "session"), out: out}
}

// Run builds the runtime from cfg and blocks until ctx is done or the
// capture stream or key listener fails.
func (a *App) Run(ctx context.Context, cfg config.Config) error {
	services, err := bootstrap.Build(ctx, cfg, a.log, a, a.out)
	if err != nil {
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return err
	}

	a.banner(services)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, services.Metrics); err != nil {
				a.log.Warn().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics listener stopped")
			}
		}()
	}

	err = services.Dictation.Run(ctx, services.Source, services.Listener)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) banner(s bootstrap.Services) {
	fmt.Fprintf(a.out, "holdtalk ready: hold %s to dictate\n", s.Trigger.Name)
	fmt.Fprintf(a.out, "  model:  %s (%s)\n", s.Config.Model, s.ModelPath)
	fmt.Fprintf(a.out, "  engine: %s\n", s.Binary)
	if s.Rules > 0 {
		fmt.Fprintf(a.out, "  rules:  %d from %s\n", s.Rules, s.Config.Rules.Path)
	}
}

// SessionStateChanged logs session lifecycle updates.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	msg := sessionReasonMessage(reason)
	if msg == "" {
		return
	}
	a.log.Info().Str("state", string(state)).Str("reason", string(reason)).Msg(msg)
}

// TranscriptDelivered logs the per-session summary.
func (a *App) TranscriptDelivered(result domain.SessionResult) {
	a.log.Debug().
		Str(logging.FieldSessionID, result.SessionID).
		Str("raw", result.Raw).
		Str("final", result.Final).
		Dur("total", result.TotalTime).
		Msg("session summary")
}

// SessionError logs backend errors.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	ev := a.log.Warn()
	if code == domain.ErrorCodeStartup || code == domain.ErrorCodeAudioStream {
		ev = a.log.Error()
	}
	ev.Str("code", string(code)).Str("detail", detail).Msg(errorMessage(code, detail))
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Listening for trigger key"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonRecordingRejected:
		return "Still processing previous recording"
	case domain.SessionReasonTranscribing:
		return "Recording stopped. Transcribing..."
	case domain.SessionReasonTranscriptDelivered:
		return "Transcript pasted"
	case domain.SessionReasonClipboardFailed:
		return "Transcript ready (clipboard write failed)"
	case domain.SessionReasonPasteFailed:
		return "Transcript copied (paste failed)"
	case domain.SessionReasonRecordingDiscarded:
		return "Recording too short, discarded"
	case domain.SessionReasonEncodingFailed:
		return "Could not encode recording"
	case domain.SessionReasonNoTranscript:
		return "No transcript captured"
	case domain.SessionReasonTranscriptionFailed:
		return "Transcription failed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeEncoding:
		return "Audio encoding failed"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	case domain.ErrorCodePaste:
		return "Paste keystroke failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
