// Package keys resolves human-readable trigger key names to hook keycodes.
package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vcaesar/keycode"

	"holdtalk/internal/domain"
)

// ErrUnknownKey is returned for names that map to no keycode.
var ErrUnknownKey = errors.New("unknown trigger key")

// aliases covers names the keycode table lacks, mostly the left/right
// modifier variants. Values are libuiohook virtual codes.
var aliases = map[string]uint16{
	"lctrl":    29,
	"rctrl":    3613,
	"lshift":   42,
	"lalt":     56,
	"option":   56,
	"roption":  3640,
	"lcmd":     3675,
	"super":    3675,
	"rsuper":   3676,
	"escape":   1,
	"return":   28,
	"spacebar": 57,
}

// Parse resolves name into a trigger KeySpec. Names are case-insensitive and
// may be any keycode table entry ("ctrl", "f9", "a") or a modifier alias.
func Parse(name string) (domain.KeySpec, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return domain.KeySpec{}, fmt.Errorf("%w: empty name", ErrUnknownKey)
	}

	if code, ok := aliases[normalized]; ok {
		return domain.KeySpec{Name: normalized, Code: code}, nil
	}
	if code, ok := keycode.Keycode[normalized]; ok && code != 0 {
		return domain.KeySpec{Name: normalized, Code: code}, nil
	}
	return domain.KeySpec{}, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// MustParse is Parse for package-level defaults known to be valid.
func MustParse(name string) domain.KeySpec {
	spec, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return spec
}
