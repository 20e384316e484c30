package student

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/admissions/core"
)

func TestStudent_TransitionTo(t *testing.T) {
	tests := []struct {
		from    State
		to      State
		wantErr bool
	}{
		{from: StateDraft, to: StateFeesDue},
		{from: StateDraft, to: StateFeesCleared},
		{from: StateDraft, to: StateRegistered, wantErr: true},
		{from: StateFeesDue, to: StateFeesCleared},
		{from: StateFeesDue, to: StateRegistered, wantErr: true},
		{from: StateFeesDue, to: StateRegistrationPending, wantErr: true},
		{from: StateFeesDue, to: StateCancelled},
		{from: StateFeesCleared, to: StateRegistrationPending},
		{from: StateFeesCleared, to: StateRegistered},
		{from: StateFeesCleared, to: StateFeesDue, wantErr: true},
		{from: StateRegistrationPending, to: StateRegistered},
		{from: StateRegistrationPending, to: StateCancelled},
		{from: StateRegistrationPending, to: StateFeesCleared, wantErr: true},
		{from: StateRegistered, to: StateCancelled, wantErr: true},
		{from: StateCancelled, to: StateFeesDue, wantErr: true},
		{from: StateFeesDue, to: StateFeesDue},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			std := Student{ID: "s1", State: tt.from}
			err := std.TransitionTo(tt.to)
			if tt.wantErr {
				assert.Equal(t, core.ErrStateViolation, errors.Cause(err))
				assert.Equal(t, tt.from, std.State, "state must not change on failure")
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.to, std.State)
		})
	}
}

func TestStudent_RequireState(t *testing.T) {
	std := Student{ID: "s1", State: StateFeesCleared}
	assert.NoError(t, std.RequireState("op", StateFeesDue, StateFeesCleared))

	err := std.RequireState("pay admission fee", StateFeesDue)
	assert.Equal(t, core.ErrStateViolation, errors.Cause(err))
	assert.Contains(t, err.Error(), "ADMITTED_FEES_CLEARED")
}

func TestState_IsTerminal(t *testing.T) {
	for _, st := range States {
		assert.Equal(t, st == StateRegistered || st == StateCancelled, st.IsTerminal(), st)
	}
	assert.False(t, StateDraft.IsValid(), "drafts are never persisted")
}

func TestProfile_CleanAndFullName(t *testing.T) {
	p := Profile{FirstName: "  Asha ", LastName: " Patel", Email: " Asha@Mail.COM ", Gender: "Female"}
	p.Clean()
	assert.Equal(t, "Asha", p.FirstName)
	assert.Equal(t, "asha@mail.com", p.Email)
	assert.Equal(t, "female", p.Gender)
	assert.Equal(t, "Asha Patel", p.FullName())
}
