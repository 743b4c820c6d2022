package orchestrators

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/donation"
)

// DonationStoreForCreate defines the store interface needed by RecordDonation.
type DonationStoreForCreate interface {
	Create(ctx context.Context, value donation.Donation) error
}

// RecordDonationInput carries input for the orchestrator. Amount is decimal
// text so no precision is lost on the way in. CardNumber is format-checked
// and only its last four digits are kept; nothing is charged.
type RecordDonationInput struct {
	Type          string `json:"type" validate:"required"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency" validate:"omitempty,len=3"`
	Description   string `json:"description" validate:"max=1000"`
	CampaignName  string `json:"campaign_name" validate:"max=200"`
	PaymentMethod string `json:"payment_method" validate:"max=100"`
	CardNumber    string `json:"card_number"`
	DonorID       string `json:"-" validate:"required"`
}

// RecordDonationDeps holds dependencies for RecordDonation.
type RecordDonationDeps struct {
	DonationStore DonationStoreForCreate
	Now           func() time.Time
	GenerateID    func() string
}

// ExecuteRecordDonation records a donation for the signed-in donor.
// PRE: monetary types carry Amount > 0; in-kind carries a description
// POST: Donation persisted with a REF-<unix millis> payment reference.
// In-kind donations are stored with no amount
func ExecuteRecordDonation(ctx context.Context, input RecordDonationInput, deps RecordDonationDeps) (donation.Donation, error) {
	if err := validateInput(input); err != nil {
		return donation.Donation{}, err
	}
	kind, err := donation.ParseType(input.Type)
	if err != nil {
		return donation.Donation{}, apperr.Validation(err)
	}

	now := clock(deps.Now)
	d := donation.Donation{
		ID:               newID(deps.GenerateID),
		DonorID:          input.DonorID,
		Type:             kind,
		Currency:         strings.ToUpper(strings.TrimSpace(input.Currency)),
		Description:      strings.TrimSpace(input.Description),
		CampaignName:     strings.TrimSpace(input.CampaignName),
		PaymentMethod:    strings.TrimSpace(input.PaymentMethod),
		PaymentReference: donation.PaymentReference(now),
		CreatedAt:        now,
	}
	if d.Currency == "" {
		d.Currency = donation.DefaultCurrency
	}
	if kind.IsMonetary() {
		if amount := strings.TrimSpace(input.Amount); amount != "" {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return donation.Donation{}, apperr.Validationf("amount must be a number")
			}
			d.Amount = decimal.NewNullDecimal(value.Round(2))
		}
	}
	if card := strings.TrimSpace(input.CardNumber); card != "" {
		last4, err := donation.CardLast4(card)
		if err != nil {
			return donation.Donation{}, apperr.Validation(err)
		}
		d.CardLast4 = last4
	}
	if err := d.Validate(); err != nil {
		return donation.Donation{}, apperr.Validation(err)
	}
	if err := deps.DonationStore.Create(ctx, d); err != nil {
		return donation.Donation{}, apperr.Store(err)
	}

	zap.L().Info("donation_event",
		zap.String("event", "donation_recorded"),
		zap.String("donation_id", d.ID),
		zap.String("type", string(d.Type)),
		zap.String("reference", d.PaymentReference),
	)
	return d, nil
}
