package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"holdtalk/internal/audio"
	"holdtalk/internal/config"
	"holdtalk/internal/desktop"
	"holdtalk/internal/domain"
	"holdtalk/internal/engine"
	"holdtalk/internal/hotkey"
	"holdtalk/internal/keys"
	"holdtalk/internal/logging"
	"holdtalk/internal/metrics"
	"holdtalk/internal/mic"
	"holdtalk/internal/ports"
	"holdtalk/internal/rules"
	"holdtalk/internal/usecase"
)

// ErrPrecondition marks startup failures detected before any device is opened.
var ErrPrecondition = errors.New("startup precondition failed")

// Services is the assembled runtime graph. Nothing in it has touched the
// microphone or the input hook yet.
type Services struct {
	Dictation *usecase.Dictation
	Source    ports.FrameSource
	Listener  ports.KeyListener
	Metrics   *metrics.Metrics

	Trigger   domain.KeySpec
	Binary    string
	ModelPath string
	Rules     int
	Config    config.Config
}

// Build resolves the trigger key, engine binary, model file and rules, then
// wires the runtime. Any of those failing is reported as ErrPrecondition.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger, events ports.EventSink, console io.Writer) (Services, error) {
	trigger, err := keys.Parse(cfg.TriggerKey)
	if err != nil {
		return Services{}, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}

	binary, err := engine.ResolveBinary(cfg.Engine.Binary)
	if err != nil {
		return Services{}, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}

	modelPath, err := engine.ResolveModel(cfg.Engine.ModelsDir, cfg.Model)
	if err != nil {
		return Services{}, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}

	rewriter, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}

	env := engine.ResourceEnv(ctx, "")
	if len(env) > 0 {
		log.Debug().Strs("env", env).Msg("using whisper-cpp resources from Homebrew")
	}

	m := metrics.New()

	var paster ports.Paster
	if cfg.Output.Paste {
		paster = desktop.NewPaster(cfg.Output.PasteDelay)
	}

	whisper := engine.NewWhisper(engine.Config{
		Binary:    binary,
		ModelPath: modelPath,
		Language:  cfg.Engine.Language,
		Timeout:   cfg.Engine.Timeout,
		Env:       env,
	}, logging.Component(log, "engine"))

	dictation := usecase.NewDictation(usecase.Dependencies{
		Encoder:     audio.NewWAVEncoder(cfg.Audio.ArtifactPath, cfg.Audio.SampleRate),
		Transcriber: whisper,
		Rewriter:    rewriter,
		Clipboard:   desktop.NewClipboard(),
		Paster:      paster,
		Cues:        desktop.NewCuePlayer(cfg.Output.Cues, logging.Component(log, "cues")),
		Notifier:    desktop.NewNotifier(cfg.Output.Notify),
		Events:      events,
		Metrics:     m,
		Console:     console,
		Logger:      log,
	}, usecase.Config{
		Trigger:    trigger,
		SampleRate: cfg.Audio.SampleRate,
		MinFrames:  cfg.MinFrames(),
		MaxFrames:  cfg.MaxFrames(),
	})

	return Services{
		Dictation: dictation,
		Source:    newSource(cfg.Audio, logging.Component(log, "capture")),
		Listener:  hotkey.NewListener(),
		Metrics:   m,
		Trigger:   trigger,
		Binary:    binary,
		ModelPath: modelPath,
		Rules:     rewriter.Len(),
		Config:    cfg,
	}, nil
}

func newSource(cfg config.AudioConfig, log zerolog.Logger) ports.FrameSource {
	if cfg.Backend == "ffmpeg" {
		return audio.NewFFMPEGSource(cfg.FFMPEGCommand, audio.FFMPEGConfig{
			SampleRate:  cfg.SampleRate,
			BatchFrames: cfg.BatchFrames,
			InputFormat: cfg.InputFormat,
			InputDevice: cfg.InputDevice,
		})
	}
	return mic.NewSource(mic.Config{
		SampleRate:  cfg.SampleRate,
		BatchFrames: cfg.BatchFrames,
	}, log)
}
