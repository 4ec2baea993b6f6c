package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"holdtalk/internal/domain"
	"holdtalk/internal/ports"
)

const separatorWidth = 40

// Delivery reports which output steps succeeded.
type Delivery struct {
	Copied bool
	Pasted bool
}

// Timings are the diagnostics printed with each transcript.
type Timings struct {
	Inference time.Duration
	Total     time.Duration
}

// OutputDispatcher hands transcripts to the user: clipboard, paste keystroke,
// console echo and optional notification. It also owns the audible cues.
// Failures are reported but never propagated.
type OutputDispatcher struct {
	clipboard ports.Clipboard
	paster    ports.Paster
	cues      ports.CuePlayer
	notifier  ports.Notifier
	events    ports.EventSink
	metrics   ports.Metrics
	out       io.Writer
	log       zerolog.Logger
}

// NewOutputDispatcher wires the output adapters. A nil paster disables the
// paste keystroke; nil cues or notifier disable those as well.
func NewOutputDispatcher(
	clipboard ports.Clipboard,
	paster ports.Paster,
	cues ports.CuePlayer,
	notifier ports.Notifier,
	events ports.EventSink,
	metrics ports.Metrics,
	out io.Writer,
	log zerolog.Logger,
) *OutputDispatcher {
	if out == nil {
		out = io.Discard
	}
	return &OutputDispatcher{
		clipboard: clipboard,
		paster:    paster,
		cues:      cues,
		notifier:  notifier,
		events:    events,
		metrics:   metrics,
		out:       out,
		log:       log,
	}
}

// Cue plays cue without blocking.
func (d *OutputDispatcher) Cue(cue domain.Cue) {
	if d.cues != nil {
		d.cues.Play(cue)
	}
}

// Deliver copies text, pastes it into the focused window and echoes it with
// the session timings. A clipboard failure skips the paste, which would
// otherwise insert whatever the clipboard held before.
func (d *OutputDispatcher) Deliver(ctx context.Context, text string, timings Timings) Delivery {
	var res Delivery

	if err := d.clipboard.SetText(ctx, text); err != nil {
		d.log.Warn().Err(err).Msg("clipboard write failed")
		d.metrics.DeliveryFailed(domain.ErrorCodeClipboard)
		d.events.SessionError(domain.ErrorCodeClipboard, "transcript ready but clipboard write failed")
	} else {
		res.Copied = true
	}

	if res.Copied && d.paster != nil {
		if err := d.paster.Paste(ctx); err != nil {
			d.log.Warn().Err(err).Msg("paste keystroke failed")
			d.metrics.DeliveryFailed(domain.ErrorCodePaste)
			d.events.SessionError(domain.ErrorCodePaste, "transcript copied but paste failed")
		} else {
			res.Pasted = true
		}
	}

	d.echo(text, timings)

	if d.notifier != nil {
		if err := d.notifier.Notify("holdtalk", text); err != nil {
			d.log.Debug().Err(err).Msg("notification failed")
		}
	}
	return res
}

func (d *OutputDispatcher) echo(text string, timings Timings) {
	fmt.Fprintf(d.out, "%s\n", text)
	fmt.Fprintf(d.out, "AI inference: %.2fs\n", timings.Inference.Seconds())
	fmt.Fprintf(d.out, "Total process: %.2fs\n", timings.Total.Seconds())
	fmt.Fprintln(d.out, strings.Repeat("-", separatorWidth))
}
