package shift

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"reliefportal/internal/adapters/storage"
	"reliefportal/internal/domain/apperr"
	domain "reliefportal/internal/domain/shift"
)

// SQLStore implements Store over either dialect.
type SQLStore struct {
	db       storage.SQLDB
	dialect  storage.Dialect
	notifier storage.Notifier
}

// NewSQLStore creates a new shift store. A nil notifier discards changes.
func NewSQLStore(db storage.SQLDB, dialect storage.Dialect, notifier storage.Notifier) *SQLStore {
	if notifier == nil {
		notifier = storage.NopNotifier{}
	}
	return &SQLStore{db: db, dialect: dialect, notifier: notifier}
}

// Columns is the select list understood by Scan, exported for the signup store.
var Columns = []string{
	"id", "title", "description", "location", "start_time", "end_time",
	"max_volunteers", "current_volunteers", "status", "series_id",
	"created_by", "created_at", "updated_at",
}

// QualifiedColumns returns Columns prefixed with a table alias for joins.
func QualifiedColumns(alias string) []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = alias + "." + c
	}
	return out
}

// GetByID retrieves a Shift by its ID.
// PRE: id is non-empty
// POST: Returns the entity or a not_found error
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Shift, error) {
	query, args, err := s.dialect.Builder().Select(Columns...).From("volunteer_shifts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Shift{}, err
	}
	entity, err := Scan(s.db.QueryRowContext(ctx, query, args...).Scan)
	if storage.IsNoRows(err) {
		return domain.Shift{}, storage.NotFound("shift")
	}
	return entity, err
}

// Create inserts a new shift.
// PRE: value has been validated
func (s *SQLStore) Create(ctx context.Context, value domain.Shift) error {
	return s.CreateMany(ctx, []domain.Shift{value})
}

// CreateMany inserts shifts in one transaction, all or nothing.
// PRE: every value has been validated
func (s *SQLStore) CreateMany(ctx context.Context, values []domain.Shift) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, v := range values {
		query, args, err := s.dialect.Builder().Insert("volunteer_shifts").Columns(Columns...).Values(
			v.ID,
			v.Title,
			v.Description,
			v.Location,
			s.dialect.Time(v.StartTime),
			s.dialect.Time(v.EndTime),
			v.MaxVolunteers,
			v.CurrentVolunteers,
			string(v.Status),
			nullString(v.SeriesID),
			v.CreatedBy,
			s.dialect.Time(v.CreatedAt),
			s.dialect.Time(v.UpdatedAt),
		).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert shift %s: %w", v.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, v := range values {
		s.notifier.Notify(ctx, storage.TableShifts, storage.OpInsert, v.ID, v.CreatedBy)
	}
	return nil
}

// Cancel moves a shift to cancelled in one conditional write, so a shift
// completed concurrently is never overwritten.
// PRE: id is non-empty
// POST: Returns the stored shift. Cancelling a cancelled shift is a no-op;
// a completed shift fails with ErrShiftClosed (validation)
func (s *SQLStore) Cancel(ctx context.Context, id string, now time.Time) (domain.Shift, error) {
	query, args, err := s.dialect.Builder().Update("volunteer_shifts").
		Set("status", string(domain.StatusCancelled)).
		Set("updated_at", s.dialect.Time(now)).
		Where(sq.And{
			sq.Eq{"id": id},
			sq.NotEq{"status": []string{string(domain.StatusCompleted), string(domain.StatusCancelled)}},
		}).
		ToSql()
	if err != nil {
		return domain.Shift{}, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Shift{}, fmt.Errorf("cancel shift: %w", err)
	}
	changed, _ := res.RowsAffected()

	sh, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Shift{}, err
	}
	if changed > 0 {
		s.notifier.Notify(ctx, storage.TableShifts, storage.OpUpdate, sh.ID, sh.CreatedBy)
		return sh, nil
	}
	if err := sh.Cancel(now); err != nil {
		return domain.Shift{}, apperr.Validation(err)
	}
	return sh, nil
}

// List retrieves shifts ordered by start time.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Shift, error) {
	stmt := s.applyFilter(s.dialect.Builder().Select(Columns...).From("volunteer_shifts"), filter).
		OrderBy("start_time", "id")
	if filter.Limit > 0 {
		stmt = stmt.Limit(uint64(filter.Limit)).Offset(uint64(max(filter.Offset, 0)))
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Shift
	for rows.Next() {
		entity, err := Scan(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the number of shifts matching filter. Limit and Offset are ignored.
func (s *SQLStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	query, args, err := s.applyFilter(s.dialect.Builder().Select("COUNT(*)").From("volunteer_shifts"), filter).ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (s *SQLStore) applyFilter(stmt sq.SelectBuilder, filter ListFilter) sq.SelectBuilder {
	if !filter.StartsFrom.IsZero() {
		stmt = stmt.Where(sq.GtOrEq{"start_time": s.dialect.Time(filter.StartsFrom)})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		stmt = stmt.Where(sq.Eq{"status": statuses})
	}
	if filter.SeriesID != "" {
		stmt = stmt.Where(sq.Eq{"series_id": filter.SeriesID})
	}
	return stmt
}

// Row holds scan targets for one row read through Columns.
type Row struct {
	entity    domain.Shift
	status    string
	seriesID  *string
	start     storage.Timestamp
	end       storage.Timestamp
	createdAt storage.Timestamp
	updatedAt storage.Timestamp
}

// Dest returns the scan destinations in Columns order.
func (r *Row) Dest() []any {
	return []any{
		&r.entity.ID,
		&r.entity.Title,
		&r.entity.Description,
		&r.entity.Location,
		&r.start,
		&r.end,
		&r.entity.MaxVolunteers,
		&r.entity.CurrentVolunteers,
		&r.status,
		&r.seriesID,
		&r.entity.CreatedBy,
		&r.createdAt,
		&r.updatedAt,
	}
}

// Shift converts the scanned values into a domain Shift.
func (r *Row) Shift() (domain.Shift, error) {
	entity := r.entity
	status, err := domain.ParseStatus(r.status)
	if err != nil {
		return domain.Shift{}, err
	}
	entity.Status = status
	if r.seriesID != nil {
		entity.SeriesID = *r.seriesID
	}
	entity.StartTime = r.start.Time
	entity.EndTime = r.end.Time
	entity.CreatedAt = r.createdAt.Time
	entity.UpdatedAt = r.updatedAt.Time
	return entity, nil
}

// Scan extracts a Shift from a row scanner function reading Columns.
func Scan(scan func(dest ...any) error) (domain.Shift, error) {
	var r Row
	if err := scan(r.Dest()...); err != nil {
		return domain.Shift{}, err
	}
	return r.Shift()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
