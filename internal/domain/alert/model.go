package alert

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxLocationLength    = 200
)

// Severity is the ordered urgency classification of an alert.
type Severity string

// Severity constants, least to most urgent.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ValidSeverities lists severities in ascending order.
var ValidSeverities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Domain errors
var (
	ErrEmptyTitle         = errors.New("alert title is required")
	ErrTitleTooLong       = errors.New("alert title cannot exceed 200 characters")
	ErrEmptyDescription   = errors.New("alert description is required")
	ErrDescriptionTooLong = errors.New("alert description cannot exceed 5000 characters")
	ErrEmptyLocation      = errors.New("alert location is required")
	ErrLocationTooLong    = errors.New("alert location cannot exceed 200 characters")
	ErrInvalidSeverity    = errors.New("severity must be one of: low, medium, high, critical")
	ErrEmptyCreator       = errors.New("alert creator is required")
)

// Alert is an emergency notice raised by an admin. Alerts are deactivated,
// never deleted.
type Alert struct {
	ID          string
	Title       string
	Description string
	Severity    Severity
	Location    string
	IsActive    bool
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ParseSeverity converts a string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Rank() == 0 {
		return "", ErrInvalidSeverity
	}
	return sev, nil
}

// Rank returns 1..4 for low..critical and 0 for unknown values.
func (s Severity) Rank() int {
	for i, v := range ValidSeverities {
		if v == s {
			return i + 1
		}
	}
	return 0
}

// AtLeast reports whether s is as urgent as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Validate checks if the Alert has valid data.
// PRE: Alert struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Alert) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return ErrEmptyTitle
	}
	if len(a.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if strings.TrimSpace(a.Description) == "" {
		return ErrEmptyDescription
	}
	if len(a.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(a.Location) == "" {
		return ErrEmptyLocation
	}
	if len(a.Location) > MaxLocationLength {
		return ErrLocationTooLong
	}
	if a.Severity.Rank() == 0 {
		return ErrInvalidSeverity
	}
	if a.CreatedBy == "" {
		return ErrEmptyCreator
	}
	return nil
}

// Deactivate clears the active flag.
// POST: IsActive is false, UpdatedAt is now
func (a *Alert) Deactivate(now time.Time) {
	a.IsActive = false
	a.UpdatedAt = now
}

// Activate sets the active flag.
// POST: IsActive is true, UpdatedAt is now
func (a *Alert) Activate(now time.Time) {
	a.IsActive = true
	a.UpdatedAt = now
}
