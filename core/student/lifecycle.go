package student

import (
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

type State string

const (
	StateDraft               State = "DRAFT" // transient, never persisted
	StateFeesDue             State = "ADMITTED_FEES_DUE"
	StateFeesCleared         State = "ADMITTED_FEES_CLEARED"
	StateRegistrationPending State = "REGISTRATION_PENDING"
	StateRegistered          State = "REGISTERED"
	StateCancelled           State = "CANCELLED"
)

var States = []State{StateFeesDue, StateFeesCleared, StateRegistrationPending, StateRegistered, StateCancelled}

var transitions = map[State][]State{
	StateDraft:               {StateFeesDue, StateFeesCleared},
	StateFeesDue:             {StateFeesCleared, StateCancelled},
	StateFeesCleared:         {StateRegistrationPending, StateRegistered, StateCancelled},
	StateRegistrationPending: {StateRegistered, StateCancelled},
}

func (s State) IsValid() bool {
	switch s {
	case StateFeesDue, StateFeesCleared, StateRegistrationPending, StateRegistered, StateCancelled:
		return true
	}
	return false
}

func (s State) IsTerminal() bool {
	return s == StateRegistered || s == StateCancelled
}

func (s State) CanTransitionTo(to State) bool {
	for _, st := range transitions[s] {
		if st == to {
			return true
		}
	}
	return false
}

// RequireState fails with core.ErrStateViolation unless the student is in one of `allowed`.
func (s Student) RequireState(op string, allowed ...State) error {
	for _, st := range allowed {
		if s.State == st {
			return nil
		}
	}
	return errors.Wrapf(core.ErrStateViolation, "%s: student %s is %s", op, s.ID, s.State)
}

// TransitionTo moves the student to `to`, failing with core.ErrStateViolation on an illegal move.
// Staying in the same state is a no-op.
func (s *Student) TransitionTo(to State) error {
	if s.State == to {
		return nil
	}
	if !s.State.CanTransitionTo(to) {
		return errors.Wrapf(core.ErrStateViolation, "student %s cannot move from %s to %s", s.ID, s.State, to)
	}
	s.State = to
	return nil
}
