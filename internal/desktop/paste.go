package desktop

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/micmonay/keybd_event"

	"holdtalk/internal/ports"
)

// keyPresser is the subset of keybd_event.KeyBonding used for pasting.
type keyPresser interface {
	HasCTRL(bool)
	HasSuper(bool)
	SetKeys(...int)
	Launching() error
}

// Paster synthesizes the platform paste shortcut: Cmd+V on macOS and Ctrl+V
// elsewhere.
type Paster struct {
	goos   string
	settle time.Duration
	newKB  func() (keyPresser, error)
}

// NewPaster returns a paster for the running platform. settle is how long to
// wait after the clipboard write before the keystroke.
func NewPaster(settle time.Duration) *Paster {
	return &Paster{
		goos:   runtime.GOOS,
		settle: settle,
		newKB: func() (keyPresser, error) {
			kb, err := keybd_event.NewKeyBonding()
			if err != nil {
				return nil, err
			}
			// The Linux uinput device needs a moment before it accepts events.
			if runtime.GOOS == "linux" {
				time.Sleep(200 * time.Millisecond)
			}
			return &kb, nil
		},
	}
}

var _ ports.Paster = (*Paster)(nil)

func (p *Paster) Paste(ctx context.Context) error {
	if p.settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.settle):
		}
	}

	kb, err := p.newKB()
	if err != nil {
		return fmt.Errorf("paste: keyboard unavailable: %w", err)
	}
	if p.goos == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	return nil
}
