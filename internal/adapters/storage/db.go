package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" //nolint:blank-imports
	goose "github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// OpenPostgres opens a pgx-backed *sql.DB and waits for the server to answer.
// PRE: dsn is a postgres connection URL
// POST: Returns a pinged pool or the last ping error
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	const timeout = 500 * time.Millisecond
	for range 10 {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		time.Sleep(timeout)
	}
	db.Close()
	return nil, fmt.Errorf("ping postgres: %w", err)
}

// OpenSQLite opens the local fallback store. path may be ":memory:".
// A single connection serialises writers and keeps in-memory databases shared.
// POST: foreign keys enforced; WAL enabled for file databases
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func gooseSetup(d Dialect) (string, error) {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	switch d {
	case DialectPostgres:
		return "migrations/postgres", goose.SetDialect("postgres")
	case DialectSQLite:
		return "migrations/sqlite", goose.SetDialect("sqlite3")
	}
	return "", fmt.Errorf("unknown store dialect %q", d)
}

// MigrateDB applies every pending migration for the dialect.
// PRE: db is a valid database connection
// POST: schema is at LatestSchemaVersion; re-running is a no-op
func MigrateDB(db *sql.DB, d Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, err := gooseSetup(d)
	if err != nil {
		return err
	}
	before, _ := goose.GetDBVersion(db)
	if err := goose.Up(db, dir); err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		return fmt.Errorf("migrate %s: %w", d, err)
	}
	after, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if after != before {
		zap.L().Info("schema_migrated", zap.String("dialect", string(d)), zap.Int64("from", before), zap.Int64("to", after))
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func SchemaVersion(db *sql.DB, d Dialect) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if _, err := gooseSetup(d); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}

// LatestSchemaVersion returns the highest migration version shipped for d.
func LatestSchemaVersion(d Dialect) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, err := gooseSetup(d)
	if err != nil {
		return 0, err
	}
	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return 0, err
	}
	last, err := migrations.Last()
	if err != nil {
		return 0, err
	}
	return last.Version, nil
}
