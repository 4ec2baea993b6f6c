package usecase

import (
	"sync"

	"holdtalk/internal/domain"
)

// TriggerStateMachine turns raw key events for the trigger key into capture
// start/stop events. Auto-repeat presses and stray releases are ignored.
type TriggerStateMachine struct {
	key domain.KeySpec

	mu    sync.Mutex
	state domain.TriggerState
}

func NewTriggerStateMachine(key domain.KeySpec) *TriggerStateMachine {
	return &TriggerStateMachine{key: key, state: domain.TriggerIdle}
}

// Handle advances the machine. The boolean is false when ev causes no
// transition.
func (m *TriggerStateMachine) Handle(ev domain.KeyEvent) (domain.TriggerEvent, bool) {
	if !m.key.Matches(ev) {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case ev.Kind == domain.KeyPress && m.state == domain.TriggerIdle:
		m.state = domain.TriggerHolding
		return domain.StartCapture, true
	case ev.Kind == domain.KeyRelease && m.state == domain.TriggerHolding:
		m.state = domain.TriggerIdle
		return domain.StopCapture, true
	default:
		return "", false
	}
}

func (m *TriggerStateMachine) State() domain.TriggerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
