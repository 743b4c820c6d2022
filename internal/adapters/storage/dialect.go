package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect identifies which SQL engine a store talks to. Store code is shared;
// the dialect supplies placeholders, time encoding and error classification.
type Dialect string

// Dialect constants
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// sqliteTimeLayout is fixed-width so stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLSTATE codes for constraint violations.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Builder returns a squirrel statement builder with the dialect's placeholders.
func (d Dialect) Builder() sq.StatementBuilderType {
	if d == DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Time encodes t for a query argument. All stored times are UTC.
func (d Dialect) Time(t time.Time) any {
	if d == DialectSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// NullTime encodes t, or NULL when t is zero.
func (d Dialect) NullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return d.Time(t)
}

// IsUniqueViolation reports whether err came from a unique constraint or index.
func (d Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			isConstraint(liteErr, "UNIQUE")
	}
	return false
}

// IsForeignKeyViolation reports whether err came from a foreign key constraint.
func (d Dialect) IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
			isConstraint(liteErr, "FOREIGN KEY")
	}
	return false
}

// isConstraint matches a primary-code constraint error by message, for
// connections that do not report extended result codes.
func isConstraint(err *sqlite.Error, kind string) bool {
	return err.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), kind)
}

// ParseDialect converts a configuration string into a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case DialectPostgres, DialectSQLite:
		return Dialect(s), nil
	}
	return "", fmt.Errorf("unknown store dialect %q", s)
}
