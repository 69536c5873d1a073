// Package modesm implements the STATEMENT/BULK mode state machine (C7).
// Switching modes always flushes the current transaction first.
package modesm

import (
	"context"
	"fmt"
)

// Mode is one of the two mutually exclusive dispatch modes.
type Mode int

const (
	// Statement routes query events to the statement executor.
	Statement Mode = iota
	// Bulk routes row events to the table registry.
	Bulk
)

func (m Mode) String() string {
	if m == Bulk {
		return "BULK"
	}
	return "STATEMENT"
}

// Committer performs the atomic commit the state machine must issue before
// any mode transition. It is satisfied by the commit coordinator (C8).
type Committer interface {
	Commit(ctx context.Context) error
}

// Machine tracks the currently active mode and enforces commit-before-switch.
type Machine struct {
	mode Mode
}

// New returns a Machine starting in STATEMENT mode.
func New() *Machine {
	return &Machine{mode: Statement}
}

// Mode returns the currently active mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Ensure guarantees the machine is in want mode before the caller dispatches
// an event requiring it. If a switch is needed, committer.Commit is invoked
// first; on commit failure the switch does not happen and the event must
// not be dispatched.
func (m *Machine) Ensure(ctx context.Context, want Mode, committer Committer) error {
	if m.mode == want {
		return nil
	}
	if err := committer.Commit(ctx); err != nil {
		return fmt.Errorf("commit before switching %s -> %s: %w", m.mode, want, err)
	}
	m.mode = want
	return nil
}
