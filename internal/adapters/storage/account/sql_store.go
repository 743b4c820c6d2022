package account

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"reliefportal/internal/adapters/storage"
	domain "reliefportal/internal/domain/account"
	"reliefportal/internal/domain/apperr"
)

// ErrEmailTaken is returned by Create when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// SQLStore implements Store over either dialect.
type SQLStore struct {
	db       storage.SQLDB
	dialect  storage.Dialect
	notifier storage.Notifier
}

// NewSQLStore creates a new account store. A nil notifier discards the
// user_roles changes raised by Create.
func NewSQLStore(db storage.SQLDB, dialect storage.Dialect, notifier storage.Notifier) *SQLStore {
	if notifier == nil {
		notifier = storage.NopNotifier{}
	}
	return &SQLStore{db: db, dialect: dialect, notifier: notifier}
}

var accountColumns = []string{"id", "email", "password_hash", "failed_logins", "locked_until", "created_at"}

// GetByID retrieves an Account by its ID.
// PRE: id is non-empty
// POST: Returns the entity or a not_found error
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return s.getOne(ctx, sq.Eq{"id": id})
}

// GetByEmail retrieves an Account by normalised email.
// PRE: email is non-empty
// POST: Returns the entity or a not_found error
func (s *SQLStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.getOne(ctx, sq.Eq{"email": domain.NormalizeEmail(email)})
}

func (s *SQLStore) getOne(ctx context.Context, where sq.Eq) (domain.Account, error) {
	query, args, err := s.dialect.Builder().Select(accountColumns...).From("accounts").Where(where).ToSql()
	if err != nil {
		return domain.Account{}, err
	}
	entity, err := scanAccount(s.db.QueryRowContext(ctx, query, args...).Scan)
	if storage.IsNoRows(err) {
		return domain.Account{}, storage.NotFound("account")
	}
	return entity, err
}

// Create inserts an account, its profile and its initial role grants in one
// transaction.
// PRE: acct has been validated and carries a password hash
// POST: Every row exists, or none does. ErrEmailTaken (validation) when the
// email is in use
func (s *SQLStore) Create(ctx context.Context, acct domain.Account, profile domain.Profile, roles ...domain.RoleAssignment) error {
	for _, ra := range roles {
		if !ra.Role.Valid() {
			return apperr.Validation(domain.ErrInvalidRole)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	b := s.dialect.Builder()
	query, args, err := b.Insert("accounts").Columns(accountColumns...).Values(
		acct.ID,
		domain.NormalizeEmail(acct.Email),
		acct.PasswordHash,
		acct.FailedLogins,
		s.dialect.NullTime(acct.LockedUntil),
		s.dialect.Time(acct.CreatedAt),
	).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return apperr.Validation(ErrEmailTaken)
		}
		return fmt.Errorf("insert account: %w", err)
	}

	profile.UserID = acct.ID
	query, args, err = b.Insert("profiles").
		Columns("id", "full_name", "phone", "location", "created_at", "updated_at").
		Values(profile.UserID, profile.FullName, profile.Phone, profile.Location,
			s.dialect.Time(profile.CreatedAt), s.dialect.Time(profile.UpdatedAt)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	for _, ra := range roles {
		query, args, err = b.Insert("user_roles").
			Columns("id", "user_id", "role", "created_at").
			Values(ra.ID, acct.ID, string(ra.Role), s.dialect.Time(ra.CreatedAt)).
			Suffix("ON CONFLICT (user_id, role) DO NOTHING").
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert role: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, ra := range roles {
		s.notifier.Notify(ctx, storage.TableUserRoles, storage.OpInsert, ra.ID, acct.ID)
	}
	return nil
}

// Save updates the mutable credential fields of an existing account.
// PRE: acct.ID exists
// POST: password hash, failed login counter and lock are persisted
func (s *SQLStore) Save(ctx context.Context, acct domain.Account) error {
	query, args, err := s.dialect.Builder().Update("accounts").
		Set("password_hash", acct.PasswordHash).
		Set("failed_logins", acct.FailedLogins).
		Set("locked_until", s.dialect.NullTime(acct.LockedUntil)).
		Where(sq.Eq{"id": acct.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.NotFound("account")
	}
	return nil
}

// List retrieves accounts joined with their profiles, newest first.
// Roles are left empty; callers merge them from the role store.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.User, error) {
	stmt := s.dialect.Builder().
		Select("a.id", "a.email", "a.password_hash", "a.failed_logins", "a.locked_until", "a.created_at",
			"COALESCE(p.full_name, '')", "COALESCE(p.phone, '')", "COALESCE(p.location, '')").
		From("accounts a").
		LeftJoin("profiles p ON p.id = a.id").
		OrderBy("a.created_at DESC", "a.id")
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

	var results []domain.User
	for rows.Next() {
		var u domain.User
		var lockedUntil, createdAt storage.Timestamp
		if err := rows.Scan(&u.Account.ID, &u.Account.Email, &u.Account.PasswordHash, &u.Account.FailedLogins,
			&lockedUntil, &createdAt, &u.Profile.FullName, &u.Profile.Phone, &u.Profile.Location); err != nil {
			return nil, err
		}
		u.Account.LockedUntil = lockedUntil.Time
		u.Account.CreatedAt = createdAt.Time
		u.Profile.UserID = u.Account.ID
		results = append(results, u)
	}
	return results, rows.Err()
}

// Count returns the total number of accounts.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
	return count, err
}

// GetProfile retrieves the profile for a user.
// POST: Returns the profile or a not_found error
func (s *SQLStore) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	query, args, err := s.dialect.Builder().
		Select("id", "full_name", "phone", "location", "created_at", "updated_at").
		From("profiles").Where(sq.Eq{"id": userID}).ToSql()
	if err != nil {
		return domain.Profile{}, err
	}
	var p domain.Profile
	var createdAt, updatedAt storage.Timestamp
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&p.UserID, &p.FullName, &p.Phone, &p.Location, &createdAt, &updatedAt)
	if storage.IsNoRows(err) {
		return domain.Profile{}, storage.NotFound("profile")
	}
	if err != nil {
		return domain.Profile{}, err
	}
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return p, nil
}

// SaveProfile upserts a profile row.
// PRE: profile.UserID references an existing account
func (s *SQLStore) SaveProfile(ctx context.Context, profile domain.Profile) error {
	query, args, err := s.dialect.Builder().Insert("profiles").
		Columns("id", "full_name", "phone", "location", "created_at", "updated_at").
		Values(profile.UserID, profile.FullName, profile.Phone, profile.Location,
			s.dialect.Time(profile.CreatedAt), s.dialect.Time(profile.UpdatedAt)).
		Suffix("ON CONFLICT (id) DO UPDATE SET full_name = excluded.full_name, phone = excluded.phone, " +
			"location = excluded.location, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// ProfileNames maps user ids to display names, falling back to the email
// when no full name is set. Unknown ids are absent from the result.
func (s *SQLStore) ProfileNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	query, args, err := s.dialect.Builder().
		Select("a.id", "a.email", "COALESCE(p.full_name, '')").
		From("accounts a").
		LeftJoin("profiles p ON p.id = a.id").
		Where(sq.Eq{"a.id": userIDs}).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, email, fullName string
		if err := rows.Scan(&id, &email, &fullName); err != nil {
			return nil, err
		}
		names[id] = domain.Profile{FullName: fullName}.DisplayName(email)
	}
	return names, rows.Err()
}

// scanAccount extracts an Account from a row scanner function.
func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var entity domain.Account
	var lockedUntil, createdAt storage.Timestamp
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.PasswordHash,
		&entity.FailedLogins,
		&lockedUntil,
		&createdAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	entity.LockedUntil = lockedUntil.Time
	entity.CreatedAt = createdAt.Time
	return entity, nil
}
