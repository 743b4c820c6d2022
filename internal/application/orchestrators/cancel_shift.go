package orchestrators

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/shift"
)

// ShiftStoreForUpdate defines the store interface needed by CancelShift.
type ShiftStoreForUpdate interface {
	Cancel(ctx context.Context, id string, now time.Time) (shift.Shift, error)
}

// CancelShiftInput carries input for the orchestrator.
type CancelShiftInput struct {
	ShiftID string `validate:"required"`
}

// CancelShiftDeps holds dependencies for CancelShift.
type CancelShiftDeps struct {
	ShiftStore ShiftStoreForUpdate
	Now        func() time.Time
}

// ExecuteCancelShift cancels a shift. Existing signups are kept as history.
// PRE: shift is not completed; checked by the store in the same write
// POST: Status is cancelled; no further signups or completion are accepted
func ExecuteCancelShift(ctx context.Context, input CancelShiftInput, deps CancelShiftDeps) (shift.Shift, error) {
	if err := validateInput(input); err != nil {
		return shift.Shift{}, err
	}
	sh, err := deps.ShiftStore.Cancel(ctx, input.ShiftID, clock(deps.Now))
	if err != nil {
		var typed *apperr.Error
		if errors.As(err, &typed) {
			return shift.Shift{}, err
		}
		return shift.Shift{}, apperr.Store(err)
	}

	zap.L().Info("shift_event", zap.String("event", "shift_cancelled"), zap.String("shift_id", sh.ID))
	return sh, nil
}
