// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package drm

import "github.com/ManuGH/playerplatform/internal/fsm"

// State is the lifecycle of the session's current exchange.
type State string

const (
	StateIdle      State = "idle"
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsTerminal returns true if the state is a final state for an exchange.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

type trigger string

const (
	trBegin   trigger = "begin"
	trAccept  trigger = "accept"
	trReject  trigger = "reject"
	trTimeout trigger = "timeout"
	trCancel  trigger = "cancel"
)

var transitions = []fsm.Transition[State, trigger]{
	{From: StateIdle, Event: trBegin, To: StatePending},
	{From: StateSucceeded, Event: trBegin, To: StatePending},
	{From: StateFailed, Event: trBegin, To: StatePending},

	{From: StatePending, Event: trAccept, To: StateSucceeded},
	{From: StatePending, Event: trReject, To: StateFailed},
	{From: StatePending, Event: trTimeout, To: StateFailed},
	{From: StatePending, Event: trCancel, To: StateCancelled},
}

func newMachine() *fsm.Machine[State, trigger] {
	return fsm.MustNew(StateIdle, transitions)
}
