package usecase

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"holdtalk/internal/domain"
)

func newTestDispatcher(clipboard *fakeClipboard, paster *fakePaster, notifier *fakeNotifier, out *bytes.Buffer) (*OutputDispatcher, *fakeEventSink, *fakeMetrics) {
	events := &fakeEventSink{}
	metrics := newFakeMetrics()
	d := &OutputDispatcher{
		clipboard: clipboard,
		events:    events,
		metrics:   metrics,
		out:       out,
		log:       zerolog.Nop(),
	}
	if paster != nil {
		d.paster = paster
	}
	if notifier != nil {
		d.notifier = notifier
	}
	return d, events, metrics
}

func TestOutputDispatcherDeliversAndEchoes(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	clipboard := &fakeClipboard{}
	paster := &fakePaster{}
	d, events, _ := newTestDispatcher(clipboard, paster, nil, &out)

	got := d.Deliver(context.Background(), "hello world", Timings{
		Inference: 1230 * time.Millisecond,
		Total:     2340 * time.Millisecond,
	})

	if !got.Copied || !got.Pasted {
		t.Fatalf("expected copied and pasted, got %+v", got)
	}
	if texts := clipboard.snapshot(); len(texts) != 1 || texts[0] != "hello world" {
		t.Fatalf("unexpected clipboard writes: %v", texts)
	}
	want := "hello world\nAI inference: 1.23s\nTotal process: 2.34s\n" + strings.Repeat("-", 40) + "\n"
	if out.String() != want {
		t.Fatalf("unexpected echo:\n%q\nwant\n%q", out.String(), want)
	}
	if errs := events.snapshotErrors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestOutputDispatcherClipboardFailureSkipsPaste(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	clipboard := &fakeClipboard{err: errBoom}
	paster := &fakePaster{}
	d, events, metrics := newTestDispatcher(clipboard, paster, nil, &out)

	got := d.Deliver(context.Background(), "text", Timings{})

	if got.Copied || got.Pasted {
		t.Fatalf("expected nothing delivered, got %+v", got)
	}
	if paster.snapshotCalls() != 0 {
		t.Fatalf("paste must be skipped when the clipboard write fails")
	}
	if errs := events.snapshotErrors(); len(errs) != 1 || errs[0].code != domain.ErrorCodeClipboard {
		t.Fatalf("expected clipboard error event, got %+v", errs)
	}
	if len(metrics.deliveryFailures) != 1 || metrics.deliveryFailures[0] != domain.ErrorCodeClipboard {
		t.Fatalf("expected clipboard failure metric, got %v", metrics.deliveryFailures)
	}
	if !strings.HasPrefix(out.String(), "text\n") {
		t.Fatalf("transcript should still be echoed, got %q", out.String())
	}
}

func TestOutputDispatcherPasteFailureKeepsClipboard(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	clipboard := &fakeClipboard{}
	paster := &fakePaster{err: errBoom}
	d, events, metrics := newTestDispatcher(clipboard, paster, nil, &out)

	got := d.Deliver(context.Background(), "text", Timings{})

	if !got.Copied || got.Pasted {
		t.Fatalf("expected copied only, got %+v", got)
	}
	if errs := events.snapshotErrors(); len(errs) != 1 || errs[0].code != domain.ErrorCodePaste {
		t.Fatalf("expected paste error event, got %+v", errs)
	}
	if len(metrics.deliveryFailures) != 1 || metrics.deliveryFailures[0] != domain.ErrorCodePaste {
		t.Fatalf("expected paste failure metric, got %v", metrics.deliveryFailures)
	}
}

func TestOutputDispatcherWithoutPaster(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	notifier := &fakeNotifier{}
	d, _, _ := newTestDispatcher(&fakeClipboard{}, nil, notifier, &out)

	got := d.Deliver(context.Background(), "note", Timings{})

	if !got.Copied || got.Pasted {
		t.Fatalf("expected copied only, got %+v", got)
	}
	if len(notifier.messages) != 1 || notifier.messages[0] != "note" {
		t.Fatalf("expected one notification, got %v", notifier.messages)
	}
}

func TestOutputDispatcherCueWithoutPlayer(t *testing.T) {
	t.Parallel()

	d := NewOutputDispatcher(&fakeClipboard{}, nil, nil, nil, &fakeEventSink{}, newFakeMetrics(), nil, zerolog.Nop())
	d.Cue(domain.CueArmed)
	if got := d.Deliver(context.Background(), "x", Timings{}); !got.Copied {
		t.Fatalf("expected copy with discarded console output")
	}
}
