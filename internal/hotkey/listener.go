// Package hotkey delivers global keyboard events from the system input hook.
package hotkey

import (
	"context"
	"errors"
	"sync"

	hook "github.com/robotn/gohook"

	"holdtalk/internal/domain"
	"holdtalk/internal/ports"
)

// ErrHookStopped is returned when the system hook closes its channel before
// the listener context is done.
var ErrHookStopped = errors.New("input hook stopped")

// Listener is a process-wide keyboard hook. Only one may run at a time.
type Listener struct {
	mu      sync.Mutex
	running bool
}

func NewListener() *Listener {
	return &Listener{}
}

var _ ports.KeyListener = (*Listener)(nil)

// Listen blocks, forwarding press and release events to handler, until ctx is
// done or the hook stops. Handler runs on the listener goroutine; events that
// arrive while it is busy queue in the hook channel.
func (l *Listener) Listen(ctx context.Context, handler func(domain.KeyEvent)) error {
	if handler == nil {
		return errors.New("hotkey: nil handler")
	}

	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("hotkey: listener already running")
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	events := hook.Start()
	defer hook.End()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrHookStopped
			}
			if key, ok := translate(ev); ok {
				handler(key)
			}
		}
	}
}

// translate maps hook events to key events. The hook reports a physical press
// as KeyHold (and KeyDown for printable keys), so both count as presses.
func translate(ev hook.Event) (domain.KeyEvent, bool) {
	switch ev.Kind {
	case hook.KeyHold, hook.KeyDown:
		return domain.KeyEvent{Kind: domain.KeyPress, Code: ev.Keycode, Char: ev.Keychar}, true
	case hook.KeyUp:
		return domain.KeyEvent{Kind: domain.KeyRelease, Code: ev.Keycode, Char: ev.Keychar}, true
	default:
		return domain.KeyEvent{}, false
	}
}
