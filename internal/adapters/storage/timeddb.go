package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/adapters/http/perf"
)

// SQLDB is the database interface used by all stores.
// *sql.DB, *sql.Tx-backed wrappers and *TimedDB satisfy it.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var (
	_ SQLDB = (*sql.DB)(nil)
	_ SQLDB = (*TimedDB)(nil)
)

// DefaultSlowQuery is the default threshold for slow query warnings.
const DefaultSlowQuery = 50 * time.Millisecond

// TimedDB wraps a *sql.DB, timing every statement. Timings are keyed by
// statement label ("SELECT volunteer_shifts") so the perf snapshot groups
// queries by the table they touch.
type TimedDB struct {
	db        *sql.DB
	collector *perf.Collector
	slow      time.Duration
}

// NewTimedDB wraps db. A nil collector only logs.
// PRE: db is a valid database connection
// POST: statements slower than slow log at WARN, the rest at DEBUG
func NewTimedDB(db *sql.DB, collector *perf.Collector, slow time.Duration) *TimedDB {
	if slow <= 0 {
		slow = DefaultSlowQuery
	}
	return &TimedDB{db: db, collector: collector, slow: slow}
}

// RawDB returns the underlying *sql.DB (needed for migrations and pool config).
func (t *TimedDB) RawDB() *sql.DB {
	return t.db
}

func (t *TimedDB) observe(op, query string, start time.Time, err error) {
	elapsed := time.Since(start)
	label := statementLabel(query)
	durationMs := float64(elapsed.Microseconds()) / 1000.0

	if elapsed >= t.slow {
		zap.L().Warn("slow_query",
			zap.String("op", op),
			zap.String("statement", label),
			zap.Float64("duration_ms", durationMs),
			zap.Error(err),
		)
	} else if ce := zap.L().Check(zap.DebugLevel, "query"); ce != nil {
		ce.Write(zap.String("statement", label), zap.Float64("duration_ms", durationMs))
	}

	if t.collector != nil {
		t.collector.Record(perf.Entry{
			Kind:       perf.KindQuery,
			Path:       label,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
}

// ExecContext implements SQLDB.
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	t.observe("exec", query, start, err)
	return result, err
}

// QueryContext implements SQLDB.
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.observe("query", query, start, err)
	return rows, err
}

// QueryRowContext implements SQLDB.
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.observe("query_row", query, start, row.Err())
	return row
}

// BeginTx implements SQLDB. Statements inside the transaction are not timed.
func (t *TimedDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	start := time.Now()
	tx, err := t.db.BeginTx(ctx, opts)
	t.observe("begin", "BEGIN", start, err)
	return tx, err
}

// Close closes the underlying database connection.
func (t *TimedDB) Close() error {
	return t.db.Close()
}

// PingContext verifies the database connection.
func (t *TimedDB) PingContext(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// statementLabel reduces a query to its verb and target table, e.g.
// "INSERT shift_signups". Queries without a recognisable table keep the verb.
func statementLabel(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "EMPTY"
	}
	verb := strings.ToUpper(fields[0])
	var marker string
	switch verb {
	case "SELECT", "DELETE":
		marker = "FROM"
	case "INSERT":
		marker = "INTO"
	case "UPDATE":
		if len(fields) > 1 {
			return verb + " " + tableName(fields[1])
		}
		return verb
	default:
		return verb
	}
	for i := 1; i < len(fields)-1; i++ {
		if strings.EqualFold(fields[i], marker) {
			return verb + " " + tableName(fields[i+1])
		}
	}
	return verb
}

func tableName(tok string) string {
	tok = strings.Trim(tok, `"'`+"`(),;")
	if i := strings.IndexByte(tok, '('); i >= 0 {
		tok = tok[:i]
	}
	return strings.ToLower(tok)
}
