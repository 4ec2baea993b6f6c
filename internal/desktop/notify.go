package desktop

import (
	"github.com/gen2brain/beeep"

	"holdtalk/internal/ports"
)

// Notifier shows desktop notifications.
type Notifier struct {
	enabled bool
	notify  func(title, message string, icon any) error
}

func NewNotifier(enabled bool) *Notifier {
	return &Notifier{enabled: enabled, notify: beeep.Notify}
}

var _ ports.Notifier = (*Notifier)(nil)

func (n *Notifier) Notify(title, message string) error {
	if !n.enabled {
		return nil
	}
	return n.notify(title, message, "")
}
