package orchestrators

import (
	"context"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/domain/alert"
	"reliefportal/internal/domain/apperr"
)

// AlertStoreForToggle defines the store interface needed by SetAlertActive.
type AlertStoreForToggle interface {
	GetByID(ctx context.Context, id string) (alert.Alert, error)
	Save(ctx context.Context, value alert.Alert) error
}

// SetAlertActiveInput carries input for the orchestrator.
type SetAlertActiveInput struct {
	AlertID string `validate:"required"`
	Active  bool
}

// SetAlertActiveDeps holds dependencies for SetAlertActive.
type SetAlertActiveDeps struct {
	AlertStore AlertStoreForToggle
	Now        func() time.Time
}

// ExecuteSetAlertActive deactivates or reactivates an alert. Alerts are
// never deleted.
// POST: IsActive equals input.Active; setting the current value is a no-op
func ExecuteSetAlertActive(ctx context.Context, input SetAlertActiveInput, deps SetAlertActiveDeps) (alert.Alert, error) {
	if err := validateInput(input); err != nil {
		return alert.Alert{}, err
	}
	a, err := deps.AlertStore.GetByID(ctx, input.AlertID)
	if err != nil {
		return alert.Alert{}, err
	}
	if a.IsActive == input.Active {
		return a, nil
	}

	now := clock(deps.Now)
	event := "alert_activated"
	if input.Active {
		a.Activate(now)
	} else {
		a.Deactivate(now)
		event = "alert_deactivated"
	}
	if err := deps.AlertStore.Save(ctx, a); err != nil {
		return alert.Alert{}, apperr.Store(err)
	}

	zap.L().Info("alert_event", zap.String("event", event), zap.String("alert_id", a.ID))
	return a, nil
}
