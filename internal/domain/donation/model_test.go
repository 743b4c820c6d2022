package donation_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefportal/internal/domain/donation"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestDonation_Validate(t *testing.T) {
	base := func() donation.Donation {
		return donation.Donation{DonorID: "d1", Type: donation.TypeOneTime, Amount: amount("250"), Currency: "ZAR"}
	}
	tests := []struct {
		name    string
		mutate  func(d *donation.Donation)
		wantErr error
	}{
		{"valid one-time", func(d *donation.Donation) {}, nil},
		{"valid campaign", func(d *donation.Donation) { d.Type = donation.TypeCampaign; d.CampaignName = "Winter blankets" }, nil},
		{"valid in-kind", func(d *donation.Donation) {
			d.Type = donation.TypeInKind
			d.Amount = decimal.NullDecimal{}
			d.Description = "20 blankets"
		}, nil},
		{"no donor", func(d *donation.Donation) { d.DonorID = "" }, donation.ErrEmptyDonor},
		{"bad type", func(d *donation.Donation) { d.Type = "pledge" }, donation.ErrInvalidType},
		{"missing amount", func(d *donation.Donation) { d.Amount = decimal.NullDecimal{} }, donation.ErrAmountRequired},
		{"zero amount", func(d *donation.Donation) { d.Amount = amount("0") }, donation.ErrAmountNotPositive},
		{"negative amount", func(d *donation.Donation) { d.Amount = amount("-5") }, donation.ErrAmountNotPositive},
		{"in-kind with amount", func(d *donation.Donation) { d.Type = donation.TypeInKind; d.Description = "x" }, donation.ErrAmountOnInKind},
		{"in-kind without description", func(d *donation.Donation) {
			d.Type = donation.TypeInKind
			d.Amount = decimal.NullDecimal{}
		}, donation.ErrDescriptionRequired},
		{"bad currency", func(d *donation.Donation) { d.Currency = "rand" }, donation.ErrInvalidCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base()
			tt.mutate(&d)
			assert.Equal(t, tt.wantErr, d.Validate())
		})
	}
}

func TestParseType(t *testing.T) {
	got, err := donation.ParseType("in_kind")
	require.NoError(t, err)
	assert.Equal(t, donation.TypeInKind, got)

	_, err = donation.ParseType("loan")
	assert.ErrorIs(t, err, donation.ErrInvalidType)
}

func TestLabelAndReference(t *testing.T) {
	d := donation.Donation{Currency: "ZAR", Amount: amount("99.5")}
	assert.Equal(t, "donated ZAR 99.50", d.Label())
	assert.Equal(t, "donated in-kind", donation.Donation{}.Label())

	at := time.UnixMilli(1767225600123).UTC()
	assert.Equal(t, "REF-1767225600123", donation.PaymentReference(at))
}

func TestCardLast4(t *testing.T) {
	last4, err := donation.CardLast4("4111 1111-1111 1111")
	require.NoError(t, err)
	assert.Equal(t, "1111", last4)

	_, err = donation.CardLast4("4111")
	assert.ErrorIs(t, err, donation.ErrInvalidCardNumber)
	_, err = donation.CardLast4("4111x11111111111")
	assert.ErrorIs(t, err, donation.ErrInvalidCardNumber)
}
