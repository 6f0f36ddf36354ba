package speech

import "sync"

// State is the readiness of a speech device.
type State int32

const (
	// StateUninitialized means Init has not been called.
	StateUninitialized State = iota
	// StateInitializing means Init is running.
	StateInitializing
	// StateReady means the device accepts speech.
	StateReady
	// StateFailed means Init failed. The device stays silent for good.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// StateMachine guards device readiness transitions. It is safe for
// concurrent use.
type StateMachine struct {
	mu          sync.Mutex
	current     State
	transitions map[State][]State
	onEnter     map[State]func()
}

// NewStateMachine creates a machine in StateUninitialized. There is no way
// back to StateUninitialized.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateUninitialized,
		transitions: map[State][]State{
			StateUninitialized: {StateInitializing},
			StateInitializing:  {StateReady, StateFailed},
		},
		onEnter: make(map[State]func()),
	}
}

// Transition moves to the given state if that is allowed from the current
// one, and runs its enter callback.
func (sm *StateMachine) Transition(to State) bool {
	sm.mu.Lock()
	valid := false
	for _, s := range sm.transitions[sm.current] {
		if s == to {
			valid = true
			break
		}
	}
	if !valid {
		sm.mu.Unlock()
		return false
	}
	sm.current = to
	fn := sm.onEnter[to]
	sm.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state State, fn func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onEnter[state] = fn
}
