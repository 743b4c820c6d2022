package orchestrators

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/shift"
)

// ShiftStoreForCreate defines the store interface needed by CreateShift.
type ShiftStoreForCreate interface {
	Create(ctx context.Context, value shift.Shift) error
	CreateMany(ctx context.Context, values []shift.Shift) error
}

// CreateShiftInput carries input for the orchestrator. Recurrence is an
// optional RFC 5545 RRULE (e.g. "FREQ=WEEKLY;COUNT=4"); the first occurrence
// starts at StartTime.
type CreateShiftInput struct {
	Title         string    `json:"title" validate:"required,max=200"`
	Description   string    `json:"description" validate:"max=2000"`
	Location      string    `json:"location" validate:"required,max=200"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	EndTime       time.Time `json:"end_time" validate:"required"`
	MaxVolunteers int       `json:"max_volunteers" validate:"min=1"`
	Recurrence    string    `json:"recurrence" validate:"max=500"`
	ActorID       string    `json:"-" validate:"required"`
}

// CreateShiftDeps holds dependencies for CreateShift.
type CreateShiftDeps struct {
	ShiftStore ShiftStoreForCreate
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteCreateShift creates one shift, or a series when Recurrence is set.
// PRE: EndTime after StartTime; MaxVolunteers >= 1
// POST: All shifts of a series are created or none are
func ExecuteCreateShift(ctx context.Context, input CreateShiftInput, deps CreateShiftDeps) ([]shift.Shift, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := clock(deps.Now)
	template := shift.Shift{
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		Location:      strings.TrimSpace(input.Location),
		StartTime:     input.StartTime.UTC(),
		EndTime:       input.EndTime.UTC(),
		MaxVolunteers: input.MaxVolunteers,
		Status:        shift.StatusOpen,
		CreatedBy:     input.ActorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := template.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}

	rule := strings.TrimSpace(input.Recurrence)
	if rule == "" {
		template.ID = newID(deps.GenerateID)
		if err := deps.ShiftStore.Create(ctx, template); err != nil {
			return nil, apperr.Store(err)
		}
		zap.L().Info("shift_event",
			zap.String("event", "shift_created"),
			zap.String("shift_id", template.ID),
			zap.Time("start_time", template.StartTime),
		)
		return []shift.Shift{template}, nil
	}

	seriesID := newID(deps.GenerateID)
	shifts, err := shift.Expand(template, rule, seriesID)
	if err != nil {
		return nil, apperr.Validation(err)
	}
	for i := range shifts {
		shifts[i].ID = newID(deps.GenerateID)
	}
	if err := deps.ShiftStore.CreateMany(ctx, shifts); err != nil {
		return nil, apperr.Store(err)
	}

	zap.L().Info("shift_event",
		zap.String("event", "shift_series_created"),
		zap.String("series_id", seriesID),
		zap.Int("count", len(shifts)),
	)
	return shifts, nil
}
