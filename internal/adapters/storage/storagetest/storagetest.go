// Package storagetest opens migrated sqlite databases for store tests.
package storagetest

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reliefportal/internal/adapters/storage"
)

// Open returns a migrated in-memory sqlite database closed at test cleanup.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.MigrateDB(db, storage.DialectSQLite))
	return db
}

// InsertAccount adds a bare account row so foreign keys resolve.
func InsertAccount(t testing.TB, db *sql.DB, id, email string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		"INSERT INTO accounts (id, email, password_hash, created_at) VALUES (?, ?, 'x', ?)",
		id, email, storage.DialectSQLite.Time(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
}

// Change is one notification captured by Recorder.
type Change struct {
	Table, Op, RowID, OwnerID string
}

// Recorder is a storage.Notifier that remembers what it was told.
type Recorder struct {
	mu      sync.Mutex
	changes []Change
}

// Notify implements storage.Notifier.
func (r *Recorder) Notify(_ context.Context, table, op, rowID, ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, Change{Table: table, Op: op, RowID: rowID, OwnerID: ownerID})
}

// Changes returns a copy of the recorded notifications.
func (r *Recorder) Changes() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}
