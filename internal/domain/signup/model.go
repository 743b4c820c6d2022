package signup

import (
	"errors"
	"time"

	"reliefportal/internal/domain/shift"
)

// MaxNotesLength limits volunteer-entered notes.
const MaxNotesLength = 1000

// Status is the stored state of a signup row.
type Status string

// Status constants
const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// PairState is the derived state of a (shift, volunteer) pair.
//
//	NONE -> SIGNED_UP -> NONE       (cancel)
//	NONE -> SIGNED_UP -> COMPLETED  (shift completed, terminal)
type PairState string

// PairState constants
const (
	PairNone      PairState = "NONE"
	PairSignedUp  PairState = "SIGNED_UP"
	PairCompleted PairState = "COMPLETED"
)

// Domain errors
var (
	ErrEmptyShiftID     = errors.New("shift id is required")
	ErrEmptyVolunteerID = errors.New("volunteer id is required")
	ErrInvalidStatus    = errors.New("signup status must be confirmed or cancelled")
	ErrNotesTooLong     = errors.New("notes cannot exceed 1000 characters")
	ErrAlreadyCancelled = errors.New("signup is already cancelled")
	ErrCompletedFinal   = errors.New("completed shifts cannot be changed")
	ErrNotParticipant   = errors.New("only a signed-up volunteer or an admin can complete this shift")
)

// Signup associates a volunteer with a shift. Cancelled rows are kept for
// history; only confirmed rows count as active.
type Signup struct {
	ID          string
	ShiftID     string
	VolunteerID string
	Status      Status
	Notes       string
	CreatedAt   time.Time
	CancelledAt time.Time
}

// Validate checks if the Signup has valid data.
// PRE: Signup struct is populated
// POST: Returns nil if valid, error otherwise
func (s *Signup) Validate() error {
	if s.ShiftID == "" {
		return ErrEmptyShiftID
	}
	if s.VolunteerID == "" {
		return ErrEmptyVolunteerID
	}
	if s.Status != StatusConfirmed && s.Status != StatusCancelled {
		return ErrInvalidStatus
	}
	if len(s.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	return nil
}

// IsActive reports whether the signup is confirmed.
func (s Signup) IsActive() bool {
	return s.Status == StatusConfirmed
}

// Cancel soft-cancels the signup.
// PRE: Status is confirmed
// POST: Status is cancelled, CancelledAt is now
func (s *Signup) Cancel(now time.Time) error {
	if s.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	s.Status = StatusCancelled
	s.CancelledAt = now
	return nil
}

// PairStateOf derives the pair state from the active signup (nil when there
// is none) and the shift it belongs to.
func PairStateOf(active *Signup, sh shift.Shift) PairState {
	if active == nil || !active.IsActive() {
		return PairNone
	}
	if sh.Status == shift.StatusCompleted {
		return PairCompleted
	}
	return PairSignedUp
}

// CanSignUp checks the preconditions for a new signup on sh given the pair's
// current state. Duplicate detection is the store's job; this guards the
// shift's lifecycle.
func CanSignUp(sh shift.Shift, state PairState) error {
	if state == PairCompleted {
		return ErrCompletedFinal
	}
	if sh.IsClosed() {
		return shift.ErrShiftClosed
	}
	return nil
}

// CanCancel checks that a pair in state may be cancelled. PairNone is
// allowed and results in no change.
func CanCancel(state PairState) error {
	if state == PairCompleted {
		return ErrCompletedFinal
	}
	return nil
}

// CanComplete checks that actor may mark sh complete: the actor must hold an
// active signup on the shift or be an admin.
func CanComplete(sh shift.Shift, state PairState, isAdmin bool) error {
	if sh.Status == shift.StatusCancelled {
		return shift.ErrShiftClosed
	}
	if isAdmin {
		return nil
	}
	if state == PairNone {
		return ErrNotParticipant
	}
	return nil
}

// Booking is a signup joined with its shift, as shown on a volunteer's dashboard.
type Booking struct {
	Signup Signup
	Shift  shift.Shift
}

// State returns the pair state for the booking.
func (b Booking) State() PairState {
	return PairStateOf(&b.Signup, b.Shift)
}
