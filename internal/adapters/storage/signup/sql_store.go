package signup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"reliefportal/internal/adapters/storage"
	shiftstore "reliefportal/internal/adapters/storage/shift"
	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/shift"
	domain "reliefportal/internal/domain/signup"
)

// SQLStore implements Store over either dialect.
type SQLStore struct {
	db       storage.SQLDB
	dialect  storage.Dialect
	notifier storage.Notifier
}

// NewSQLStore creates a new signup store. A nil notifier discards changes.
func NewSQLStore(db storage.SQLDB, dialect storage.Dialect, notifier storage.Notifier) *SQLStore {
	if notifier == nil {
		notifier = storage.NopNotifier{}
	}
	return &SQLStore{db: db, dialect: dialect, notifier: notifier}
}

var signupColumns = []string{"id", "shift_id", "volunteer_id", "status", "notes", "created_at", "cancelled_at"}

func qualified(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

var liveStatuses = []string{string(shift.StatusOpen), string(shift.StatusFull)}

// SignUp inserts a confirmed signup and bumps the shift counter atomically.
// PRE: value has been validated and is confirmed
// POST: On success the row exists and current_volunteers grew by one; the shift
// flips to full once the counter reaches max_volunteers. With enforceCapacity
// a full shift rejects the signup with shift.ErrShiftFull.
// Returns apperr.ErrDuplicateSignup when the pair already has a confirmed row.
func (s *SQLStore) SignUp(ctx context.Context, value domain.Signup, enforceCapacity bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	b := s.dialect.Builder()
	query, args, err := b.Insert("shift_signups").Columns(signupColumns...).Values(
		value.ID,
		value.ShiftID,
		value.VolunteerID,
		string(domain.StatusConfirmed),
		value.Notes,
		s.dialect.Time(value.CreatedAt),
		nil,
	).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return apperr.Duplicate(fmt.Errorf("volunteer already signed up for shift %s: %w", value.ShiftID, apperr.ErrDuplicateSignup))
		}
		if s.dialect.IsForeignKeyViolation(err) {
			return storage.NotFound("shift")
		}
		return fmt.Errorf("insert signup: %w", err)
	}

	where := sq.And{sq.Eq{"id": value.ShiftID}, sq.Eq{"status": liveStatuses}}
	if enforceCapacity {
		where = append(where, sq.Expr("current_volunteers < max_volunteers"))
	}
	query, args, err = b.Update("volunteer_shifts").
		Set("current_volunteers", sq.Expr("current_volunteers + 1")).
		Set("status", sq.Expr("CASE WHEN current_volunteers + 1 >= max_volunteers THEN ? ELSE status END", string(shift.StatusFull))).
		Set("updated_at", s.dialect.Time(value.CreatedAt)).
		Where(where).
		ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("bump shift counter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.rejection(ctx, tx, value.ShiftID, value.VolunteerID)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.notifier.Notify(ctx, storage.TableSignups, storage.OpInsert, value.ID, value.VolunteerID)
	s.notifier.Notify(ctx, storage.TableShifts, storage.OpUpdate, value.ShiftID, "")
	return nil
}

// rowQuerier is satisfied by storage.SQLDB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// loadPair reads the shift and the pair's confirmed signup (nil when there is
// none) through q, so a rejected write can be explained by the pair rules.
func (s *SQLStore) loadPair(ctx context.Context, q rowQuerier, shiftID, volunteerID string) (shift.Shift, *domain.Signup, error) {
	query, args, err := s.dialect.Builder().Select(shiftstore.Columns...).From("volunteer_shifts").Where(sq.Eq{"id": shiftID}).ToSql()
	if err != nil {
		return shift.Shift{}, nil, err
	}
	sh, err := shiftstore.Scan(q.QueryRowContext(ctx, query, args...).Scan)
	if storage.IsNoRows(err) {
		return shift.Shift{}, nil, storage.NotFound("shift")
	}
	if err != nil {
		return shift.Shift{}, nil, err
	}
	active, err := s.activeFor(ctx, q, shiftID, volunteerID)
	if err != nil {
		return shift.Shift{}, nil, err
	}
	return sh, active, nil
}

// ruleError tags a pair-rule violation with its kind.
func ruleError(err error) error {
	if errors.Is(err, domain.ErrNotParticipant) {
		return apperr.Forbidden(err)
	}
	return apperr.Validation(err)
}

// rejection explains why the guarded counter update matched no row. The pair
// had no confirmed row, or the unique index would have refused the insert.
func (s *SQLStore) rejection(ctx context.Context, tx *sql.Tx, shiftID, volunteerID string) error {
	sh, _, err := s.loadPair(ctx, tx, shiftID, volunteerID)
	if err != nil {
		return err
	}
	if err := domain.CanSignUp(sh, domain.PairNone); err != nil {
		return ruleError(err)
	}
	return apperr.Validation(shift.ErrShiftFull)
}

// Cancel soft-cancels the pair's confirmed signup and releases its seat.
// A pair with no confirmed signup is left alone and reports false.
// PRE: the shift is not completed
// POST: No confirmed row remains for the pair; a full shift reopens. The
// counter never drops below zero
func (s *SQLStore) Cancel(ctx context.Context, shiftID, volunteerID string, now time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	sh, active, err := s.loadPair(ctx, tx, shiftID, volunteerID)
	if apperr.Is(err, apperr.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := domain.CanCancel(domain.PairStateOf(active, sh)); err != nil {
		return false, ruleError(err)
	}
	if active == nil {
		return false, nil
	}
	if err := active.Cancel(now); err != nil {
		return false, ruleError(err)
	}

	b := s.dialect.Builder()
	query, args, err := b.Update("volunteer_shifts").
		Set("current_volunteers", sq.Expr("CASE WHEN current_volunteers > 0 THEN current_volunteers - 1 ELSE 0 END")).
		Set("status", sq.Expr("CASE WHEN status = ? THEN ? ELSE status END", string(shift.StatusFull), string(shift.StatusOpen))).
		Set("updated_at", s.dialect.Time(now)).
		Where(sq.And{sq.Eq{"id": shiftID}, sq.NotEq{"status": string(shift.StatusCompleted)}}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("release shift seat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Completed since it was read.
		return false, ruleError(domain.ErrCompletedFinal)
	}

	query, args, err = b.Update("shift_signups").
		Set("status", string(active.Status)).
		Set("cancelled_at", s.dialect.Time(active.CancelledAt)).
		Where(sq.Eq{"id": active.ID, "status": string(domain.StatusConfirmed)}).
		ToSql()
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("cancel signup: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	s.notifier.Notify(ctx, storage.TableSignups, storage.OpUpdate, active.ID, volunteerID)
	s.notifier.Notify(ctx, storage.TableShifts, storage.OpUpdate, shiftID, "")
	return true, nil
}

// CompleteShift marks a shift completed on behalf of actorID.
// PRE: actorID holds a confirmed signup on the shift, or isAdmin
// POST: status is completed; completing an already completed shift succeeds
func (s *SQLStore) CompleteShift(ctx context.Context, shiftID, actorID string, isAdmin bool, now time.Time) error {
	where := sq.And{sq.Eq{"id": shiftID}, sq.NotEq{"status": string(shift.StatusCancelled)}}
	if !isAdmin {
		where = append(where, sq.Expr(
			"EXISTS (SELECT 1 FROM shift_signups su WHERE su.shift_id = volunteer_shifts.id AND su.volunteer_id = ? AND su.status = ?)",
			actorID, string(domain.StatusConfirmed)))
	}
	query, args, err := s.dialect.Builder().Update("volunteer_shifts").
		Set("status", string(shift.StatusCompleted)).
		Set("updated_at", s.dialect.Time(now)).
		Where(where).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("complete shift: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notifier.Notify(ctx, storage.TableShifts, storage.OpUpdate, shiftID, "")
		return nil
	}

	sh, active, err := s.loadPair(ctx, s.db, shiftID, actorID)
	if err != nil {
		return err
	}
	if err := domain.CanComplete(sh, domain.PairStateOf(active, sh), isAdmin); err != nil {
		return ruleError(err)
	}
	// The actor's signup was cancelled between the update and the read.
	return ruleError(domain.ErrNotParticipant)
}

// ActiveFor returns the pair's confirmed signup, or nil when there is none.
func (s *SQLStore) ActiveFor(ctx context.Context, shiftID, volunteerID string) (*domain.Signup, error) {
	return s.activeFor(ctx, s.db, shiftID, volunteerID)
}

func (s *SQLStore) activeFor(ctx context.Context, q rowQuerier, shiftID, volunteerID string) (*domain.Signup, error) {
	query, args, err := s.dialect.Builder().Select(signupColumns...).From("shift_signups").Where(sq.Eq{
		"shift_id":     shiftID,
		"volunteer_id": volunteerID,
		"status":       string(domain.StatusConfirmed),
	}).ToSql()
	if err != nil {
		return nil, err
	}
	entity, err := scanSignup(q.QueryRowContext(ctx, query, args...).Scan)
	if storage.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// ListForVolunteer returns the volunteer's signups joined with their shifts,
// ordered by shift start.
func (s *SQLStore) ListForVolunteer(ctx context.Context, volunteerID string, activeOnly bool) ([]domain.Booking, error) {
	where := sq.And{sq.Eq{"su.volunteer_id": volunteerID}}
	if activeOnly {
		where = append(where, sq.Eq{"su.status": string(domain.StatusConfirmed)})
	}
	return s.listBookings(ctx, where, []string{"sh.start_time", "su.id"}, 0)
}

// ListRecent returns the newest signups of any status, joined with their shifts.
func (s *SQLStore) ListRecent(ctx context.Context, limit int) ([]domain.Booking, error) {
	return s.listBookings(ctx, nil, []string{"su.created_at DESC", "su.id"}, limit)
}

func (s *SQLStore) listBookings(ctx context.Context, where sq.Sqlizer, order []string, limit int) ([]domain.Booking, error) {
	cols := append(qualified("su", signupColumns), shiftstore.QualifiedColumns("sh")...)
	stmt := s.dialect.Builder().Select(cols...).
		From("shift_signups su").
		Join("volunteer_shifts sh ON sh.id = su.shift_id").
		OrderBy(order...)
	if where != nil {
		stmt = stmt.Where(where)
	}
	if limit > 0 {
		stmt = stmt.Limit(uint64(limit))
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

	var results []domain.Booking
	for rows.Next() {
		var su signupRow
		var sh shiftstore.Row
		if err := rows.Scan(append(su.dest(), sh.Dest()...)...); err != nil {
			return nil, err
		}
		entity, err := sh.Shift()
		if err != nil {
			return nil, err
		}
		results = append(results, domain.Booking{Signup: su.signup(), Shift: entity})
	}
	return results, rows.Err()
}

// ListForShift returns every signup row for a shift, oldest first.
func (s *SQLStore) ListForShift(ctx context.Context, shiftID string) ([]domain.Signup, error) {
	query, args, err := s.dialect.Builder().Select(signupColumns...).From("shift_signups").
		Where(sq.Eq{"shift_id": shiftID}).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Signup
	for rows.Next() {
		entity, err := scanSignup(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// CountActive returns the number of confirmed signups across all shifts.
func (s *SQLStore) CountActive(ctx context.Context) (int, error) {
	query, args, err := s.dialect.Builder().Select("COUNT(*)").From("shift_signups").
		Where(sq.Eq{"status": string(domain.StatusConfirmed)}).ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

type signupRow struct {
	entity      domain.Signup
	status      string
	createdAt   storage.Timestamp
	cancelledAt storage.Timestamp
}

func (r *signupRow) dest() []any {
	return []any{
		&r.entity.ID,
		&r.entity.ShiftID,
		&r.entity.VolunteerID,
		&r.status,
		&r.entity.Notes,
		&r.createdAt,
		&r.cancelledAt,
	}
}

func (r *signupRow) signup() domain.Signup {
	entity := r.entity
	entity.Status = domain.Status(r.status)
	entity.CreatedAt = r.createdAt.Time
	entity.CancelledAt = r.cancelledAt.Time
	return entity
}

// scanSignup extracts a Signup from a row scanner function.
func scanSignup(scan func(dest ...any) error) (domain.Signup, error) {
	var r signupRow
	if err := scan(r.dest()...); err != nil {
		return domain.Signup{}, err
	}
	return r.signup(), nil
}
