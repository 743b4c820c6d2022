package signup_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reliefportal/internal/domain/shift"
	"reliefportal/internal/domain/signup"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSignup_Validate(t *testing.T) {
	tests := []struct {
		name    string
		s       signup.Signup
		wantErr error
	}{
		{"valid", signup.Signup{ShiftID: "s", VolunteerID: "v", Status: signup.StatusConfirmed}, nil},
		{"no shift", signup.Signup{VolunteerID: "v", Status: signup.StatusConfirmed}, signup.ErrEmptyShiftID},
		{"no volunteer", signup.Signup{ShiftID: "s", Status: signup.StatusConfirmed}, signup.ErrEmptyVolunteerID},
		{"bad status", signup.Signup{ShiftID: "s", VolunteerID: "v", Status: "deleted"}, signup.ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, tt.s.Validate())
		})
	}
}

func TestSignup_Cancel(t *testing.T) {
	s := signup.Signup{ShiftID: "s", VolunteerID: "v", Status: signup.StatusConfirmed}
	assert.NoError(t, s.Cancel(now))
	assert.False(t, s.IsActive())
	assert.Equal(t, now, s.CancelledAt)
	assert.ErrorIs(t, s.Cancel(now), signup.ErrAlreadyCancelled)
}

func TestPairStateOf(t *testing.T) {
	open := shift.Shift{Status: shift.StatusOpen}
	done := shift.Shift{Status: shift.StatusCompleted}
	active := &signup.Signup{Status: signup.StatusConfirmed}
	cancelled := &signup.Signup{Status: signup.StatusCancelled}

	assert.Equal(t, signup.PairNone, signup.PairStateOf(nil, open))
	assert.Equal(t, signup.PairNone, signup.PairStateOf(cancelled, open))
	assert.Equal(t, signup.PairSignedUp, signup.PairStateOf(active, open))
	assert.Equal(t, signup.PairCompleted, signup.PairStateOf(active, done))
	assert.Equal(t, signup.PairNone, signup.PairStateOf(nil, done))
}

func TestCanSignUp(t *testing.T) {
	assert.NoError(t, signup.CanSignUp(shift.Shift{Status: shift.StatusOpen}, signup.PairNone))
	assert.NoError(t, signup.CanSignUp(shift.Shift{Status: shift.StatusFull}, signup.PairNone))
	assert.ErrorIs(t, signup.CanSignUp(shift.Shift{Status: shift.StatusCompleted}, signup.PairNone), shift.ErrShiftClosed)
	assert.ErrorIs(t, signup.CanSignUp(shift.Shift{Status: shift.StatusCancelled}, signup.PairNone), shift.ErrShiftClosed)
	assert.ErrorIs(t, signup.CanSignUp(shift.Shift{Status: shift.StatusCompleted}, signup.PairCompleted), signup.ErrCompletedFinal)
}

func TestCanCancel(t *testing.T) {
	assert.NoError(t, signup.CanCancel(signup.PairNone))
	assert.NoError(t, signup.CanCancel(signup.PairSignedUp))
	assert.ErrorIs(t, signup.CanCancel(signup.PairCompleted), signup.ErrCompletedFinal)
}

func TestCanComplete(t *testing.T) {
	open := shift.Shift{Status: shift.StatusOpen}
	assert.NoError(t, signup.CanComplete(open, signup.PairSignedUp, false))
	assert.NoError(t, signup.CanComplete(open, signup.PairNone, true))
	assert.ErrorIs(t, signup.CanComplete(open, signup.PairNone, false), signup.ErrNotParticipant)
	assert.ErrorIs(t, signup.CanComplete(shift.Shift{Status: shift.StatusCancelled}, signup.PairSignedUp, true), shift.ErrShiftClosed)
}
