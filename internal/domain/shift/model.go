package shift

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxLocationLength    = 200
)

// Status is the lifecycle state of a shift. The set is closed.
type Status string

// Status constants
const (
	StatusOpen      Status = "open"
	StatusFull      Status = "full"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// legacyAssigned is the status value some older rows carry. It maps to open.
const legacyAssigned = "assigned"

// ValidStatuses contains all valid status values.
var ValidStatuses = []Status{StatusOpen, StatusFull, StatusCompleted, StatusCancelled}

// Domain errors
var (
	ErrEmptyTitle         = errors.New("shift title is required")
	ErrTitleTooLong       = errors.New("shift title cannot exceed 200 characters")
	ErrDescriptionTooLong = errors.New("shift description cannot exceed 2000 characters")
	ErrEmptyLocation      = errors.New("shift location is required")
	ErrLocationTooLong    = errors.New("shift location cannot exceed 200 characters")
	ErrMissingTimes       = errors.New("shift start and end times are required")
	ErrInvalidTimeRange   = errors.New("shift end time must be after start time")
	ErrInvalidCapacity    = errors.New("max volunteers must be at least 1")
	ErrNegativeCount      = errors.New("current volunteers cannot be negative")
	ErrInvalidStatus      = errors.New("status must be one of: open, full, completed, cancelled")
	ErrShiftClosed        = errors.New("shift is no longer accepting changes")
	ErrShiftFull          = errors.New("shift is full")
	ErrEmptyCreator       = errors.New("shift creator is required")
)

// Shift is a scheduled volunteer opportunity with a time window and capacity.
type Shift struct {
	ID                string
	Title             string
	Description       string
	Location          string
	StartTime         time.Time
	EndTime           time.Time
	MaxVolunteers     int
	CurrentVolunteers int
	Status            Status
	SeriesID          string // empty unless created from a recurrence rule
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ParseStatus converts a stored status string into a Status.
// The legacy "assigned" value is read as open.
func ParseStatus(s string) (Status, error) {
	if s == legacyAssigned {
		return StatusOpen, nil
	}
	st := Status(s)
	for _, v := range ValidStatuses {
		if v == st {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// Validate checks if the Shift has valid data.
// PRE: Shift struct is populated
// POST: Returns nil if valid, error otherwise
func (s *Shift) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return ErrEmptyTitle
	}
	if len(s.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if len(s.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(s.Location) == "" {
		return ErrEmptyLocation
	}
	if len(s.Location) > MaxLocationLength {
		return ErrLocationTooLong
	}
	if s.StartTime.IsZero() || s.EndTime.IsZero() {
		return ErrMissingTimes
	}
	if !s.EndTime.After(s.StartTime) {
		return ErrInvalidTimeRange
	}
	if s.MaxVolunteers < 1 {
		return ErrInvalidCapacity
	}
	if s.CurrentVolunteers < 0 {
		return ErrNegativeCount
	}
	if _, err := ParseStatus(string(s.Status)); err != nil {
		return err
	}
	if s.CreatedBy == "" {
		return ErrEmptyCreator
	}
	return nil
}

// IsClosed reports whether the shift is in a terminal state.
func (s Shift) IsClosed() bool {
	return s.Status == StatusCompleted || s.Status == StatusCancelled
}

// IsUpcoming reports whether the shift starts at or after now.
func (s Shift) IsUpcoming(now time.Time) bool {
	return !s.StartTime.Before(now)
}

// HasCapacity reports whether another volunteer fits under the maximum.
func (s Shift) HasCapacity() bool {
	return s.CurrentVolunteers < s.MaxVolunteers
}

// OpenStatusFor returns open or full for a non-terminal shift holding count
// volunteers. Terminal statuses are returned unchanged.
func (s Shift) OpenStatusFor(count int) Status {
	if s.IsClosed() {
		return s.Status
	}
	if count >= s.MaxVolunteers {
		return StatusFull
	}
	return StatusOpen
}

// Complete moves the shift to completed.
// PRE: shift is not cancelled
// POST: Status is completed; completing twice is a no-op
func (s *Shift) Complete(now time.Time) error {
	switch s.Status {
	case StatusCompleted:
		return nil
	case StatusCancelled:
		return ErrShiftClosed
	}
	s.Status = StatusCompleted
	s.UpdatedAt = now
	return nil
}

// Cancel moves the shift to cancelled.
// PRE: shift is not completed
// POST: Status is cancelled; cancelling twice is a no-op
func (s *Shift) Cancel(now time.Time) error {
	switch s.Status {
	case StatusCancelled:
		return nil
	case StatusCompleted:
		return ErrShiftClosed
	}
	s.Status = StatusCancelled
	s.UpdatedAt = now
	return nil
}
