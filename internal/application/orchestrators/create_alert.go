package orchestrators

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/domain/alert"
	"reliefportal/internal/domain/apperr"
)

// AlertStoreForSave defines the store interface needed to write alerts.
type AlertStoreForSave interface {
	Save(ctx context.Context, value alert.Alert) error
}

// CreateAlertInput carries input for the orchestrator.
type CreateAlertInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
	Severity    string `json:"severity" validate:"required"`
	Location    string `json:"location" validate:"required,max=200"`
	ActorID     string `json:"-" validate:"required"`
}

// CreateAlertDeps holds dependencies for CreateAlert.
type CreateAlertDeps struct {
	AlertStore AlertStoreForSave
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteCreateAlert raises a new active alert.
// PRE: actor is an admin (enforced by the caller's route guard)
// POST: Alert persisted with IsActive true
func ExecuteCreateAlert(ctx context.Context, input CreateAlertInput, deps CreateAlertDeps) (alert.Alert, error) {
	if err := validateInput(input); err != nil {
		return alert.Alert{}, err
	}
	severity, err := alert.ParseSeverity(input.Severity)
	if err != nil {
		return alert.Alert{}, apperr.Validation(err)
	}

	now := clock(deps.Now)
	a := alert.Alert{
		ID:          newID(deps.GenerateID),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Severity:    severity,
		Location:    strings.TrimSpace(input.Location),
		IsActive:    true,
		CreatedBy:   input.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.Validate(); err != nil {
		return alert.Alert{}, apperr.Validation(err)
	}
	if err := deps.AlertStore.Save(ctx, a); err != nil {
		return alert.Alert{}, apperr.Store(err)
	}

	zap.L().Info("alert_event",
		zap.String("event", "alert_created"),
		zap.String("alert_id", a.ID),
		zap.String("severity", string(a.Severity)),
		zap.String("location", a.Location),
	)
	return a, nil
}
