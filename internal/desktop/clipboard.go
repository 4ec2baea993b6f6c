// Package desktop adapts clipboard, keystroke synthesis and audible cues to
// the host desktop.
package desktop

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"

	"holdtalk/internal/ports"
)

// Clipboard writes to the system clipboard.
type Clipboard struct {
	writeAll func(string) error
}

func NewClipboard() *Clipboard {
	return &Clipboard{writeAll: clipboard.WriteAll}
}

var _ ports.Clipboard = (*Clipboard)(nil)

func (c *Clipboard) SetText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.writeAll(text); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}
