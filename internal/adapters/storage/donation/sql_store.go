package donation

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"reliefportal/internal/adapters/storage"
	domain "reliefportal/internal/domain/donation"
)

// SQLStore implements Store over either dialect.
type SQLStore struct {
	db       storage.SQLDB
	dialect  storage.Dialect
	notifier storage.Notifier
}

// NewSQLStore creates a new donation store. A nil notifier discards changes.
func NewSQLStore(db storage.SQLDB, dialect storage.Dialect, notifier storage.Notifier) *SQLStore {
	if notifier == nil {
		notifier = storage.NopNotifier{}
	}
	return &SQLStore{db: db, dialect: dialect, notifier: notifier}
}

var donationColumns = []string{
	"id", "donor_id", "type", "amount", "currency", "description", "campaign_name",
	"payment_method", "card_last4", "payment_reference", "created_at",
}

// Create inserts a donation.
// PRE: value has been validated
// POST: Row exists; the amount keeps its exact decimal value
func (s *SQLStore) Create(ctx context.Context, value domain.Donation) error {
	query, args, err := s.dialect.Builder().Insert("donations").Columns(donationColumns...).Values(
		value.ID,
		value.DonorID,
		string(value.Type),
		value.Amount,
		value.Currency,
		value.Description,
		value.CampaignName,
		value.PaymentMethod,
		value.CardLast4,
		value.PaymentReference,
		s.dialect.Time(value.CreatedAt),
	).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	s.notifier.Notify(ctx, storage.TableDonations, storage.OpInsert, value.ID, value.DonorID)
	return nil
}

// ListForDonor returns the donor's donations, newest first. limit <= 0 means all.
func (s *SQLStore) ListForDonor(ctx context.Context, donorID string, limit int) ([]domain.Donation, error) {
	return s.list(ctx, sq.Eq{"donor_id": donorID}, limit)
}

// ListRecent returns donations from every donor, newest first.
func (s *SQLStore) ListRecent(ctx context.Context, limit int) ([]domain.Donation, error) {
	return s.list(ctx, nil, limit)
}

func (s *SQLStore) list(ctx context.Context, where sq.Sqlizer, limit int) ([]domain.Donation, error) {
	stmt := s.dialect.Builder().Select(donationColumns...).From("donations").OrderBy("created_at DESC", "id")
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

	var results []domain.Donation
	for rows.Next() {
		entity, err := scanDonation(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the number of donations.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM donations").Scan(&count)
	return count, err
}

// SumAmounts totals the non-null amounts, for one donor or for everyone when
// donorID is empty. The sum is taken in Go so sqlite's text amounts stay exact.
func (s *SQLStore) SumAmounts(ctx context.Context, donorID string) (decimal.Decimal, error) {
	stmt := s.dialect.Builder().Select("amount").From("donations").Where(sq.NotEq{"amount": nil})
	if donorID != "" {
		stmt = stmt.Where(sq.Eq{"donor_id": donorID})
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return decimal.Zero, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.NullDecimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		if amount.Valid {
			total = total.Add(amount.Decimal)
		}
	}
	return total, rows.Err()
}

// scanDonation extracts a Donation from a row scanner function.
func scanDonation(scan func(dest ...any) error) (domain.Donation, error) {
	var entity domain.Donation
	var kind string
	var createdAt storage.Timestamp
	err := scan(
		&entity.ID,
		&entity.DonorID,
		&kind,
		&entity.Amount,
		&entity.Currency,
		&entity.Description,
		&entity.CampaignName,
		&entity.PaymentMethod,
		&entity.CardLast4,
		&entity.PaymentReference,
		&createdAt,
	)
	if err != nil {
		return domain.Donation{}, err
	}
	entity.Type = domain.Type(kind)
	entity.CreatedAt = createdAt.Time
	return entity, nil
}
