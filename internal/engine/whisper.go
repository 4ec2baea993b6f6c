// Package engine invokes the external whisper.cpp CLI.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"holdtalk/internal/domain"
	"holdtalk/internal/ports"
)

var (
	// ErrEngineFailed is returned when the engine exits unsuccessfully.
	ErrEngineFailed = errors.New("transcription engine failed")
	// ErrEmptyTranscript is returned when the engine produced no speech.
	ErrEmptyTranscript = domain.ErrEmptyTranscript
)

// nonSpeechLine matches lines made only of whisper's annotations such as
// [BLANK_AUDIO], [Music] or (wind blowing). Brackets inside spoken text are
// left alone.
var nonSpeechLine = regexp.MustCompile(`^\s*(?:\[[^\]]*\]|\([^)]*\))(?:\s*(?:\[[^\]]*\]|\([^)]*\)))*\s*$`)

const stderrTail = 400

// Config describes how to invoke the engine. Binary and ModelPath are
// expected to be resolved already.
type Config struct {
	Binary    string
	ModelPath string
	Language  string
	Timeout   time.Duration
	Env       []string
}

// Whisper runs one whisper.cpp process per transcription.
type Whisper struct {
	cfg Config
	log zerolog.Logger
}

func NewWhisper(cfg Config, log zerolog.Logger) *Whisper {
	if cfg.Language == "" {
		cfg.Language = "auto"
	}
	return &Whisper{cfg: cfg, log: log}
}

var _ ports.Transcriber = (*Whisper)(nil)

// Args returns the command line used for artifactPath.
func (w *Whisper) Args(artifactPath string) []string {
	return []string{
		"-m", w.cfg.ModelPath,
		"-f", artifactPath,
		"-l", w.cfg.Language,
		"-nt",
	}
}

func (w *Whisper) Transcribe(ctx context.Context, artifactPath string) (domain.Transcript, error) {
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	res, err := run(ctx, command{
		Binary: w.cfg.Binary,
		Args:   w.Args(artifactPath),
		Env:    w.cfg.Env,
	})

	var elapsed time.Duration
	if res != nil {
		elapsed = res.Duration
	}
	if err != nil {
		detail := ""
		if res != nil {
			detail = tail(strings.TrimSpace(string(res.Stderr)), stderrTail)
		}
		w.log.Warn().Err(err).Dur("inference", elapsed).Str("stderr", detail).Msg("engine failed")
		if detail != "" {
			return domain.Transcript{Inference: elapsed}, fmt.Errorf("%w: %v: %s", ErrEngineFailed, err, detail)
		}
		return domain.Transcript{Inference: elapsed}, fmt.Errorf("%w: %v", ErrEngineFailed, err)
	}

	text := ParseOutput(string(res.Stdout))
	w.log.Debug().Dur("inference", elapsed).Int("stdout_bytes", len(res.Stdout)).Msg("engine finished")
	if text == "" {
		return domain.Transcript{Inference: elapsed}, ErrEmptyTranscript
	}
	return domain.Transcript{Text: text, Inference: elapsed}, nil
}

// ParseOutput extracts the transcript from engine stdout: the last non-empty
// line that is not purely a non-speech annotation, trimmed.
func ParseOutput(stdout string) string {
	lines := strings.Split(strings.ReplaceAll(stdout, "\r\n", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if text := cleanLine(lines[i]); text != "" {
			return text
		}
	}
	return ""
}

func cleanLine(line string) string {
	if nonSpeechLine.MatchString(line) {
		return ""
	}
	return strings.TrimSpace(line)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
