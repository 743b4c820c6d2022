package role

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"reliefportal/internal/adapters/storage"
	domain "reliefportal/internal/domain/account"
)

// SQLStore implements Store over either dialect.
type SQLStore struct {
	db       storage.SQLDB
	dialect  storage.Dialect
	notifier storage.Notifier
}

// NewSQLStore creates a new role store. A nil notifier discards changes.
func NewSQLStore(db storage.SQLDB, dialect storage.Dialect, notifier storage.Notifier) *SQLStore {
	if notifier == nil {
		notifier = storage.NopNotifier{}
	}
	return &SQLStore{db: db, dialect: dialect, notifier: notifier}
}

var roleColumns = []string{"id", "user_id", "role", "created_at"}

// ListForUser returns the user's role rows, oldest first.
// POST: Result may be empty; an empty result is not an error
func (s *SQLStore) ListForUser(ctx context.Context, userID string) ([]domain.RoleAssignment, error) {
	return s.list(ctx, sq.Eq{"user_id": userID})
}

// ListAll returns every role row.
func (s *SQLStore) ListAll(ctx context.Context) ([]domain.RoleAssignment, error) {
	return s.list(ctx, nil)
}

func (s *SQLStore) list(ctx context.Context, where sq.Sqlizer) ([]domain.RoleAssignment, error) {
	stmt := s.dialect.Builder().Select(roleColumns...).From("user_roles").OrderBy("created_at", "id")
	if where != nil {
		stmt = stmt.Where(where)
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

	var results []domain.RoleAssignment
	for rows.Next() {
		var ra domain.RoleAssignment
		var role string
		var createdAt storage.Timestamp
		if err := rows.Scan(&ra.ID, &ra.UserID, &role, &createdAt); err != nil {
			return nil, err
		}
		ra.Role = domain.Role(role)
		ra.CreatedAt = createdAt.Time
		results = append(results, ra)
	}
	return results, rows.Err()
}

// Add grants a role. Granting a role the user already holds is a no-op.
// PRE: assignment.Role is valid
// POST: Exactly one row exists for (UserID, Role)
func (s *SQLStore) Add(ctx context.Context, assignment domain.RoleAssignment) error {
	if !assignment.Role.Valid() {
		return domain.ErrInvalidRole
	}
	query, args, err := s.dialect.Builder().Insert("user_roles").Columns(roleColumns...).
		Values(assignment.ID, assignment.UserID, string(assignment.Role), s.dialect.Time(assignment.CreatedAt)).
		Suffix("ON CONFLICT (user_id, role) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("add role: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notifier.Notify(ctx, storage.TableUserRoles, storage.OpInsert, assignment.ID, assignment.UserID)
	}
	return nil
}

// Remove revokes a role. Revoking a role the user does not hold is a no-op.
func (s *SQLStore) Remove(ctx context.Context, userID string, role domain.Role) error {
	query, args, err := s.dialect.Builder().Delete("user_roles").
		Where(sq.Eq{"user_id": userID, "role": string(role)}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notifier.Notify(ctx, storage.TableUserRoles, storage.OpDelete, "", userID)
	}
	return nil
}
