package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/change"
)

// Change operations reported to a Notifier.
const (
	OpInsert = change.OpInsert
	OpUpdate = change.OpUpdate
	OpDelete = change.OpDelete
)

// Watched table names.
const (
	TableUserRoles = change.TableUserRoles
	TableAlerts    = change.TableAlerts
	TableShifts    = change.TableShifts
	TableSignups   = change.TableSignups
	TableDonations = change.TableDonations
)

// Notifier is told about committed row changes. ownerID is the user the row
// belongs to (user_id, volunteer_id, donor_id or created_by). Postgres raises
// these from triggers, so stores there get NopNotifier; the sqlite fallback
// publishes straight to the in-process change feed.
type Notifier interface {
	Notify(ctx context.Context, table, op, rowID, ownerID string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, string, string, string, string) {}

// NotFound builds the error returned when a lookup matches no row.
func NotFound(what string) error {
	return apperr.NotFound(fmt.Errorf("%s not found: %w", what, apperr.ErrNotFound))
}

// IsNoRows reports whether err is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
