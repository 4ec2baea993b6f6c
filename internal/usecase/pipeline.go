package usecase

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"holdtalk/internal/domain"
	"holdtalk/internal/logging"
	"holdtalk/internal/ports"
)

// sessionPipeline runs encode, transcribe, rewrite and deliver for one
// accepted session. Every failure ends the session without an error return.
type sessionPipeline struct {
	encoder     ports.Encoder
	transcriber ports.Transcriber
	rewriter    ports.Rewriter
	dispatcher  *OutputDispatcher
	events      ports.EventSink
	metrics     ports.Metrics
	sampleRate  int
	log         zerolog.Logger
}

func (p sessionPipeline) Run(ctx context.Context, frames []float32, released time.Time) domain.SessionResult {
	result := domain.SessionResult{SessionID: uuid.NewString(), Frames: len(frames)}
	log := p.log.With().Str(logging.FieldSessionID, result.SessionID).Logger()

	finish := func(reason domain.SessionStateReason) domain.SessionResult {
		result.Reason = reason
		result.TotalTime = time.Since(released)
		p.metrics.SessionFinished(reason, result.Frames, p.sampleRate)
		if result.Raw != "" {
			p.metrics.PipelineObserved(result.TotalTime)
		}
		p.events.SessionStateChanged(domain.SessionStateIdle, reason)
		return result
	}

	p.events.SessionStateChanged(domain.SessionStateProcessing, domain.SessionReasonTranscribing)

	path, err := p.encoder.Encode(frames)
	if err != nil {
		log.Error().Err(err).Int("frames", len(frames)).Msg("encoding failed")
		p.events.SessionError(domain.ErrorCodeEncoding, err.Error())
		return finish(domain.SessionReasonEncodingFailed)
	}

	transcript, err := p.transcriber.Transcribe(ctx, path)
	removeArtifact(path, log)
	result.Inference = transcript.Inference
	p.metrics.TranscriptionObserved(transcript.Inference, err == nil)

	switch {
	case errors.Is(err, domain.ErrEmptyTranscript):
		log.Info().Dur("inference", transcript.Inference).Msg("no speech recognized")
		return finish(domain.SessionReasonNoTranscript)
	case err != nil:
		log.Error().Err(err).Msg("transcription failed")
		p.events.SessionError(domain.ErrorCodeTranscription, err.Error())
		return finish(domain.SessionReasonTranscriptionFailed)
	}

	result.Raw = transcript.Text
	result.Final = transcript.Text
	if p.rewriter != nil {
		rewritten, err := p.rewriter.Apply(transcript.Text)
		if err != nil {
			log.Warn().Err(err).Msg("rewrite rules failed, delivering raw transcript")
			p.events.SessionError(domain.ErrorCodeRules, err.Error())
		} else {
			result.Final = rewritten
		}
	}

	delivery := p.dispatcher.Deliver(ctx, result.Final, Timings{
		Inference: transcript.Inference,
		Total:     time.Since(released),
	})
	result.Copied = delivery.Copied
	result.Pasted = delivery.Pasted

	reason := domain.SessionReasonTranscriptDelivered
	switch {
	case !delivery.Copied:
		reason = domain.SessionReasonClipboardFailed
	case p.dispatcher.paster != nil && !delivery.Pasted:
		reason = domain.SessionReasonPasteFailed
	}

	log.Info().
		Int("frames", result.Frames).
		Dur("inference", result.Inference).
		Bool("copied", result.Copied).
		Bool("pasted", result.Pasted).
		Msg("transcript delivered")

	result.Reason = reason
	result.TotalTime = time.Since(released)
	p.events.TranscriptDelivered(result)
	return finish(reason)
}

func removeArtifact(path string, log zerolog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("could not remove audio artifact")
	}
}
