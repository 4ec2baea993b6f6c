package usecase

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"holdtalk/internal/domain"
	"holdtalk/internal/ports"
)

type fakeEncoder struct {
	mu     sync.Mutex
	path   string
	calls  int
	frames []int
	err    error
}

func (f *fakeEncoder) Encode(samples []float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.frames = append(f.frames, len(samples))
	if f.err != nil {
		return "", f.err
	}
	if f.path != "" {
		if err := os.WriteFile(f.path, []byte("RIFF"), 0o600); err != nil {
			return "", err
		}
	}
	return f.path, nil
}

func (f *fakeEncoder) snapshotCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTranscriber struct {
	mu        sync.Mutex
	text      string
	err       error
	inference time.Duration
	paths     []string
	existed   []bool
	block     chan struct{}
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (domain.Transcript, error) {
	_, statErr := os.Stat(path)
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.existed = append(f.existed, statErr == nil)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return domain.Transcript{Inference: f.inference}, f.err
	}
	return domain.Transcript{Text: f.text, Inference: f.inference}, nil
}

func (f *fakeTranscriber) snapshotCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

type fakeRules struct {
	transform string
	err       error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type fakeClipboard struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeClipboard) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

type fakePaster struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakePaster) Paste(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakePaster) snapshotCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCues struct {
	mu     sync.Mutex
	played []domain.Cue
}

func (f *fakeCues) Play(cue domain.Cue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, cue)
}

func (f *fakeCues) snapshot() []domain.Cue {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Cue, len(f.played))
	copy(out, f.played)
	return out
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(_ string, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

type fakeEventSink struct {
	mu sync.Mutex

	states    []stateEvent
	delivered []domain.SessionResult
	errors    []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) TranscriptDelivered(result domain.SessionResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, result)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) snapshotDelivered() []domain.SessionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SessionResult, len(f.delivered))
	copy(out, f.delivered)
	return out
}

func (f *fakeEventSink) lastReason() domain.SessionStateReason {
	states := f.snapshotStates()
	if len(states) == 0 {
		return ""
	}
	return states[len(states)-1].reason
}

type fakeMetrics struct {
	mu               sync.Mutex
	sessions         map[domain.SessionStateReason]int
	transcriptions   int
	failedTranscript int
	dropped          int
	deliveryFailures []domain.ErrorCode
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{sessions: map[domain.SessionStateReason]int{}}
}

func (f *fakeMetrics) SessionFinished(reason domain.SessionStateReason, _ int, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[reason]++
}

func (f *fakeMetrics) TranscriptionObserved(_ time.Duration, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcriptions++
	if !ok {
		f.failedTranscript++
	}
}

func (f *fakeMetrics) PipelineObserved(time.Duration) {}

func (f *fakeMetrics) BatchDropped() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped++
}

func (f *fakeMetrics) DeliveryFailed(stage domain.ErrorCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveryFailures = append(f.deliveryFailures, stage)
}

func (f *fakeMetrics) sessionCount(reason domain.SessionStateReason) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[reason]
}

// fakeFrameSource hands its handler to the test and blocks Wait until Close
// or until fail is called.
type fakeFrameSource struct {
	mu       sync.Mutex
	handler  ports.FrameHandler
	startErr error
	started  chan struct{}
	done     chan struct{}
	waitErr  error
	closed   bool
}

func newFakeFrameSource() *fakeFrameSource {
	return &fakeFrameSource{started: make(chan struct{}), done: make(chan struct{})}
}

func (f *fakeFrameSource) Start(_ context.Context, handler ports.FrameHandler) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	close(f.started)
	return nil
}

func (f *fakeFrameSource) Wait() error {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeFrameSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeFrameSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitErr = err
	if !f.closed {
		f.closed = true
		close(f.done)
	}
}

func (f *fakeFrameSource) emit(batch []float32) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	handler(batch)
}

func (f *fakeFrameSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeKeyListener replays queued events and then blocks until ctx is done.
type fakeKeyListener struct {
	events chan domain.KeyEvent
	err    error
}

func newFakeKeyListener() *fakeKeyListener {
	return &fakeKeyListener{events: make(chan domain.KeyEvent, 16)}
}

func (f *fakeKeyListener) Listen(ctx context.Context, handler func(domain.KeyEvent)) error {
	if f.err != nil {
		return f.err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-f.events:
			handler(ev)
		}
	}
}

var errBoom = errors.New("boom")
