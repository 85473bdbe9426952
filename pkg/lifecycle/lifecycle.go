// Package lifecycle tracks the state of a pool owner.
//
//	Uninitialized -> Active -> Exhausted | Terminated | Failed
//
// Exhausted, Terminated and Failed are terminal; all of them end in teardown.
package lifecycle

import "sync/atomic"

// State is an owner lifecycle state.
type State int32

const (
	Uninitialized State = iota
	Active
	Exhausted
	Terminated
	Failed
)

var stateNames = [...]string{
	Uninitialized: "uninitialized",
	Active:        "active",
	Exhausted:     "exhausted",
	Terminated:    "terminated",
	Failed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Exhausted || s == Terminated || s == Failed
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	switch from {
	case Uninitialized:
		return to == Active || to == Failed || to == Terminated
	case Active:
		return to.Terminal()
	}
	return false
}

// Tracker holds a State that may be read from other goroutines (health
// checks) while the owning loop moves it forward.
type Tracker struct {
	v atomic.Int32
}

// Load returns the current state.
func (t *Tracker) Load() State { return State(t.v.Load()) }

// Transition moves to the target state if the edge is legal and reports
// whether it did.
func (t *Tracker) Transition(to State) bool {
	for {
		from := t.Load()
		if !CanTransition(from, to) {
			return false
		}
		if t.v.CompareAndSwap(int32(from), int32(to)) {
			return true
		}
	}
}
