package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reliefportal/internal/adapters/auth"
	"reliefportal/internal/adapters/changefeed"
	web "reliefportal/internal/adapters/http"
	"reliefportal/internal/adapters/http/perf"
	"reliefportal/internal/adapters/storage"
	accountstore "reliefportal/internal/adapters/storage/account"
	alertstore "reliefportal/internal/adapters/storage/alert"
	donationstore "reliefportal/internal/adapters/storage/donation"
	rolestore "reliefportal/internal/adapters/storage/role"
	shiftstore "reliefportal/internal/adapters/storage/shift"
	signupstore "reliefportal/internal/adapters/storage/signup"
	"reliefportal/internal/config"
)

// app is the wired portal: one store connection, the change-feed hub and
// the auth provider. Every subcommand builds one.
type app struct {
	cfg       config.Config
	db        *storage.TimedDB
	dsn       string
	dialect   storage.Dialect
	collector *perf.Collector
	hub       *changefeed.Hub
	stores    web.Stores
	auth      *auth.Provider
}

// openApp connects to the configured store, migrates it and builds the stores.
// POST: The caller must Close the app
func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	raw, dialect, dsn, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := storage.MigrateDB(raw, dialect); err != nil {
		raw.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		dsn:       dsn,
		dialect:   dialect,
		collector: perf.NewCollector(perf.DefaultRingSize),
		hub:       changefeed.NewHub(),
	}
	a.db = storage.NewTimedDB(raw, a.collector, cfg.SlowQuery())

	// Postgres raises changes from triggers; the sqlite file publishes from the stores.
	var notifier storage.Notifier = storage.NopNotifier{}
	if dialect == storage.DialectSQLite {
		notifier = changefeed.LocalNotifier{Hub: a.hub}
	}
	a.stores = web.Stores{
		Accounts:  accountstore.NewSQLStore(a.db, dialect, notifier),
		Roles:     rolestore.NewSQLStore(a.db, dialect, notifier),
		Alerts:    alertstore.NewSQLStore(a.db, dialect, notifier),
		Shifts:    shiftstore.NewSQLStore(a.db, dialect, notifier),
		Signups:   signupstore.NewSQLStore(a.db, dialect, notifier),
		Donations: donationstore.NewSQLStore(a.db, dialect, notifier),
	}
	a.auth = auth.NewProvider(a.stores.Accounts, auth.Config{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.AccessTokenTTL,
		SessionTTL: cfg.SessionTTL,
		GenerateID: generateID,
	})
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config) (*sql.DB, storage.Dialect, string, error) {
	if cfg.UseSQLite() {
		zap.L().Warn("store_event",
			zap.String("event", "sqlite_fallback"),
			zap.String("path", cfg.SQLitePath),
		)
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		return db, storage.DialectSQLite, "", err
	}
	dsn, err := cfg.StoreDSN()
	if err != nil {
		return nil, "", "", err
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := storage.OpenPostgres(connectCtx, dsn, cfg.StoreMaxConns)
	if err != nil {
		return nil, "", "", fmt.Errorf("connect store: %w", err)
	}
	return db, storage.DialectPostgres, dsn, nil
}

// Close releases the store connection.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		zap.L().Error("store_event", zap.String("event", "close_failed"), zap.Error(err))
	}
}

func generateID() string {
	return uuid.NewString()
}
