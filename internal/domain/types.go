package domain

import (
	"errors"
	"time"
)

// ErrEmptyTranscript reports a recognition run that produced no text.
var ErrEmptyTranscript = errors.New("empty transcript")

// TriggerState models the hold-to-talk key.
type TriggerState string

const (
	TriggerIdle    TriggerState = "idle"
	TriggerHolding TriggerState = "holding"
)

// TriggerEvent is emitted by the trigger state machine on a valid transition.
type TriggerEvent string

const (
	StartCapture TriggerEvent = "start_capture"
	StopCapture  TriggerEvent = "stop_capture"
)

// KeyEventKind distinguishes press from release.
type KeyEventKind int

const (
	KeyPress KeyEventKind = iota + 1
	KeyRelease
)

// KeyEvent is a raw input-device event.
type KeyEvent struct {
	Kind KeyEventKind
	Code uint16
	Char rune
}

// KeySpec identifies the configured trigger key.
type KeySpec struct {
	Name string
	Code uint16
}

// Matches reports whether the event targets this key.
func (k KeySpec) Matches(ev KeyEvent) bool {
	return k.Code != 0 && ev.Code == k.Code
}

// SessionState models the push-to-talk lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateRecording  SessionState = "recording"
	SessionStateProcessing SessionState = "processing"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady               SessionStateReason = "ready"
	SessionReasonRecordingStarted    SessionStateReason = "recording_started"
	SessionReasonRecordingRejected   SessionStateReason = "recording_rejected"
	SessionReasonTranscribing        SessionStateReason = "transcribing"
	SessionReasonTranscriptDelivered SessionStateReason = "transcript_delivered"
	SessionReasonClipboardFailed     SessionStateReason = "transcript_clipboard_failed"
	SessionReasonPasteFailed         SessionStateReason = "transcript_paste_failed"
	SessionReasonRecordingDiscarded  SessionStateReason = "recording_discarded"
	SessionReasonEncodingFailed      SessionStateReason = "encoding_failed"
	SessionReasonNoTranscript        SessionStateReason = "no_transcript"
	SessionReasonTranscriptionFailed SessionStateReason = "transcription_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeEncoding      ErrorCode = "encoding"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeRules         ErrorCode = "rules"
	ErrorCodeClipboard     ErrorCode = "clipboard"
	ErrorCodePaste         ErrorCode = "paste"
)

// Cue is a short audible feedback signal.
type Cue string

const (
	CueArmed   Cue = "armed"
	CueRelease Cue = "release"
)

// Transcript is the cleaned text produced by the engine for one session.
type Transcript struct {
	Text      string
	Inference time.Duration
}

// SessionResult summarizes one processed session.
type SessionResult struct {
	SessionID string             `json:"sessionId"`
	Frames    int                `json:"frames"`
	Reason    SessionStateReason `json:"reason"`
	Raw       string             `json:"raw,omitempty"`
	Final     string             `json:"final,omitempty"`
	Copied    bool               `json:"copied"`
	Pasted    bool               `json:"pasted"`
	Inference time.Duration      `json:"inference"`
	TotalTime time.Duration      `json:"total"`
}

// Status summarizes the current runtime status.
type Status struct {
	State   SessionState `json:"state"`
	Active  bool         `json:"active"`
	Message string       `json:"message,omitempty"`
}
