package alert

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"reliefportal/internal/adapters/storage"
	domain "reliefportal/internal/domain/alert"
)

// SQLStore implements Store over either dialect.
type SQLStore struct {
	db       storage.SQLDB
	dialect  storage.Dialect
	notifier storage.Notifier
}

// NewSQLStore creates a new alert store. A nil notifier discards changes.
func NewSQLStore(db storage.SQLDB, dialect storage.Dialect, notifier storage.Notifier) *SQLStore {
	if notifier == nil {
		notifier = storage.NopNotifier{}
	}
	return &SQLStore{db: db, dialect: dialect, notifier: notifier}
}

var alertColumns = []string{"id", "title", "description", "severity", "location", "is_active", "created_by", "created_at", "updated_at"}

// GetByID retrieves an Alert by its ID.
// PRE: id is non-empty
// POST: Returns the entity or a not_found error
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Alert, error) {
	query, args, err := s.dialect.Builder().Select(alertColumns...).From("emergency_alerts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Alert{}, err
	}
	entity, err := scanAlert(s.db.QueryRowContext(ctx, query, args...).Scan)
	if storage.IsNoRows(err) {
		return domain.Alert{}, storage.NotFound("alert")
	}
	return entity, err
}

// Save persists an Alert (insert or update).
// PRE: entity has been validated
// POST: Entity is persisted; created_at and created_by never change on update
func (s *SQLStore) Save(ctx context.Context, entity domain.Alert) error {
	query, args, err := s.dialect.Builder().Insert("emergency_alerts").Columns(alertColumns...).Values(
		entity.ID,
		entity.Title,
		entity.Description,
		string(entity.Severity),
		entity.Location,
		entity.IsActive,
		entity.CreatedBy,
		s.dialect.Time(entity.CreatedAt),
		s.dialect.Time(entity.UpdatedAt),
	).Suffix("ON CONFLICT (id) DO UPDATE SET title = excluded.title, description = excluded.description, " +
		"severity = excluded.severity, location = excluded.location, is_active = excluded.is_active, " +
		"updated_at = excluded.updated_at").ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	s.notifier.Notify(ctx, storage.TableAlerts, storage.OpUpdate, entity.ID, entity.CreatedBy)
	return nil
}

// ListActive returns active alerts, newest first. limit <= 0 means all.
func (s *SQLStore) ListActive(ctx context.Context, limit int) ([]domain.Alert, error) {
	return s.list(ctx, sq.Eq{"is_active": true}, limit)
}

// ListRecent returns alerts of any state, newest first.
func (s *SQLStore) ListRecent(ctx context.Context, limit int) ([]domain.Alert, error) {
	return s.list(ctx, nil, limit)
}

func (s *SQLStore) list(ctx context.Context, where sq.Sqlizer, limit int) ([]domain.Alert, error) {
	stmt := s.dialect.Builder().Select(alertColumns...).From("emergency_alerts").OrderBy("created_at DESC", "id")
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

	var results []domain.Alert
	for rows.Next() {
		entity, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// CountActive returns the number of active alerts.
func (s *SQLStore) CountActive(ctx context.Context) (int, error) {
	query, args, err := s.dialect.Builder().Select("COUNT(*)").From("emergency_alerts").Where(sq.Eq{"is_active": true}).ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// scanAlert extracts an Alert from a row scanner function.
func scanAlert(scan func(dest ...any) error) (domain.Alert, error) {
	var entity domain.Alert
	var severity string
	var createdAt, updatedAt storage.Timestamp
	err := scan(
		&entity.ID,
		&entity.Title,
		&entity.Description,
		&severity,
		&entity.Location,
		&entity.IsActive,
		&entity.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Alert{}, err
	}
	entity.Severity = domain.Severity(severity)
	entity.CreatedAt = createdAt.Time
	entity.UpdatedAt = updatedAt.Time
	return entity, nil
}
