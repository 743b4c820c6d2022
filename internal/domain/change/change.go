// Package change describes committed row changes carried by the change feed.
package change

import "time"

// Operations
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Watched tables
const (
	TableUserRoles = "user_roles"
	TableAlerts    = "emergency_alerts"
	TableShifts    = "volunteer_shifts"
	TableSignups   = "shift_signups"
	TableDonations = "donations"
)

// AllTables subscribes to every watched table.
const AllTables = "*"

// WatchedTables lists every table that raises changes.
var WatchedTables = []string{TableUserRoles, TableAlerts, TableShifts, TableSignups, TableDonations}

// Change is one committed insert, update or delete. OwnerID is the user the
// row belongs to, when the table has one.
type Change struct {
	Table   string    `json:"table"`
	Op      string    `json:"op"`
	RowID   string    `json:"row_id"`
	OwnerID string    `json:"owner_id"`
	At      time.Time `json:"at"`
}

// IsWatched reports whether table raises changes.
func IsWatched(table string) bool {
	for _, t := range WatchedTables {
		if t == table {
			return true
		}
	}
	return false
}
