package donation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefportal/internal/adapters/storage"
	"reliefportal/internal/adapters/storage/storagetest"
	domain "reliefportal/internal/domain/donation"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*SQLStore, *storagetest.Recorder) {
	t.Helper()
	db := storagetest.Open(t)
	storagetest.InsertAccount(t, db, "d1", "d1@x.org")
	storagetest.InsertAccount(t, db, "d2", "d2@x.org")
	rec := &storagetest.Recorder{}
	return NewSQLStore(db, storage.DialectSQLite, rec), rec
}

func money(id, donor, amount string, at time.Time) domain.Donation {
	return domain.Donation{
		ID: id, DonorID: donor, Type: domain.TypeOneTime,
		Amount:   decimal.NewNullDecimal(decimal.RequireFromString(amount)),
		Currency: "ZAR", PaymentReference: domain.PaymentReference(at), CreatedAt: at,
	}
}

func TestCreateAndList(t *testing.T) {
	s, rec := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, money("a", "d1", "99.50", fixedNow)))
	require.NoError(t, s.Create(ctx, domain.Donation{
		ID: "b", DonorID: "d1", Type: domain.TypeInKind, Currency: "ZAR",
		Description: "20 blankets", CreatedAt: fixedNow.Add(time.Minute),
	}))
	require.NoError(t, s.Create(ctx, money("c", "d2", "10", fixedNow.Add(2*time.Minute))))

	mine, err := s.ListForDonor(ctx, "d1", 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "b", mine[0].ID, "newest first")
	assert.False(t, mine[0].Amount.Valid)
	assert.Equal(t, "20 blankets", mine[0].Description)
	assert.True(t, mine[1].Amount.Decimal.Equal(decimal.RequireFromString("99.50")))
	assert.Equal(t, fmt.Sprintf("REF-%d", fixedNow.UnixMilli()), mine[1].PaymentReference)

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, rec.Changes(), 3)
}

func TestSumAmounts_SkipsNull(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, money("a", "d1", "0.10", fixedNow)))
	require.NoError(t, s.Create(ctx, money("b", "d1", "0.20", fixedNow)))
	require.NoError(t, s.Create(ctx, money("c", "d2", "5", fixedNow)))
	require.NoError(t, s.Create(ctx, domain.Donation{ID: "d", DonorID: "d1", Type: domain.TypeInKind, Currency: "ZAR", Description: "food", CreatedAt: fixedNow}))

	mine, err := s.SumAmounts(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "0.3", mine.String())

	all, err := s.SumAmounts(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "5.3", all.String())

	none, err := s.SumAmounts(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}
