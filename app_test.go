package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"holdtalk/internal/bootstrap"
	"holdtalk/internal/config"
	"holdtalk/internal/domain"
)

func TestSessionReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.SessionStateReason]string{
		domain.SessionReasonReady:               "Listening for trigger key",
		domain.SessionReasonRecordingStarted:    "Recording started",
		domain.SessionReasonRecordingRejected:   "Still processing previous recording",
		domain.SessionReasonTranscribing:        "Recording stopped. Transcribing...",
		domain.SessionReasonTranscriptDelivered: "Transcript pasted",
		domain.SessionReasonClipboardFailed:     "Transcript ready (clipboard write failed)",
		domain.SessionReasonPasteFailed:         "Transcript copied (paste failed)",
		domain.SessionReasonRecordingDiscarded:  "Recording too short, discarded",
		domain.SessionReasonEncodingFailed:      "Could not encode recording",
		domain.SessionReasonNoTranscript:        "No transcript captured",
		domain.SessionReasonTranscriptionFailed: "Transcription failed",
	}

	for reason, want := range cases {
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := sessionReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := sessionReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:       "Startup failed",
		domain.ErrorCodeAudioStream:   "Audio streaming issue",
		domain.ErrorCodeEncoding:      "Audio encoding failed",
		domain.ErrorCodeTranscription: "Transcription error",
		domain.ErrorCodeRules:         "Rules processing failed",
		domain.ErrorCodeClipboard:     "Clipboard write failed",
		domain.ErrorCodePaste:         "Paste keystroke failed",
	}
	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestAppLogsEvents(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	app := NewApp(zerolog.New(&buf), io.Discard)

	app.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	app.SessionStateChanged(domain.SessionStateIdle, "unknown")
	app.SessionError(domain.ErrorCodeAudioStream, "device gone")
	app.SessionError(domain.ErrorCodePaste, "no focus")

	entries := decodeLines(t, &buf)
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d: %s", len(entries), buf.String())
	}
	if entries[0]["message"] != "Recording started" || entries[0]["reason"] != "recording_started" || entries[0]["component"] != "session" {
		t.Fatalf("unexpected state entry: %v", entries[0])
	}
	if entries[1]["level"] != "error" || entries[1]["detail"] != "device gone" {
		t.Fatalf("unexpected stream error entry: %v", entries[1])
	}
	if entries[2]["level"] != "warn" || entries[2]["code"] != "paste" {
		t.Fatalf("unexpected paste error entry: %v", entries[2])
	}
}

func TestAppRunFailsBeforeOpeningDevices(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := config.Load([]string{"--engine-bin", filepath.Join(home, "no-such-whisper")})
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	var logs, out bytes.Buffer
	err = NewApp(zerolog.New(&logs), &out).Run(context.Background(), cfg)
	if !errors.Is(err, bootstrap.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("banner must not be printed on startup failure: %q", out.String())
	}
	if !strings.Contains(logs.String(), `"code":"startup"`) {
		t.Fatalf("expected startup error to be logged: %s", logs.String())
	}
}

func TestRunHelpAndBadFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	if code := run([]string{"--help"}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected --help to exit 0, got %d", code)
	}

	stderr.Reset()
	if code := run([]string{"--sample-rate", "100"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected invalid config to exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "holdtalk:") {
		t.Fatalf("expected error on stderr, got %q", stderr.String())
	}
}
