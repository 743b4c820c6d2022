package donation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a donation names none.
const DefaultCurrency = "ZAR"

// Max length constants for user-editable fields.
const (
	MaxDescriptionLength   = 1000
	MaxCampaignNameLength  = 200
	MaxPaymentMethodLength = 100
)

// Type is the kind of donation.
type Type string

// Type constants
const (
	TypeOneTime   Type = "one-time"
	TypeRecurring Type = "recurring"
	TypeInKind    Type = "in-kind"
	TypeCampaign  Type = "campaign"
)

// ValidTypes contains all valid donation types.
var ValidTypes = []Type{TypeOneTime, TypeRecurring, TypeInKind, TypeCampaign}

// Domain errors
var (
	ErrEmptyDonor          = errors.New("donor is required")
	ErrInvalidType         = errors.New("donation type must be one of: one-time, recurring, in-kind, campaign")
	ErrAmountRequired      = errors.New("amount is required for monetary donations")
	ErrAmountNotPositive   = errors.New("amount must be greater than zero")
	ErrAmountOnInKind      = errors.New("in-kind donations carry no amount")
	ErrDescriptionRequired = errors.New("in-kind donations need a description")
	ErrDescriptionTooLong  = errors.New("description cannot exceed 1000 characters")
	ErrCampaignTooLong     = errors.New("campaign name cannot exceed 200 characters")
	ErrMethodTooLong       = errors.New("payment method cannot exceed 100 characters")
	ErrInvalidCurrency     = errors.New("currency must be a three-letter code")
	ErrInvalidCardNumber   = errors.New("card number must be 12 to 19 digits")
)

var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	cardPattern     = regexp.MustCompile(`^[0-9]{12,19}$`)
)

// Donation is a recorded gift. Amount is null for in-kind donations.
type Donation struct {
	ID               string
	DonorID          string
	Type             Type
	Amount           decimal.NullDecimal
	Currency         string
	Description      string
	CampaignName     string
	PaymentMethod    string
	CardLast4        string
	PaymentReference string
	CreatedAt        time.Time
}

// ParseType converts a string into a Type. Underscored spellings are accepted.
func ParseType(s string) (Type, error) {
	t := Type(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, v := range ValidTypes {
		if v == t {
			return t, nil
		}
	}
	return "", ErrInvalidType
}

// IsMonetary reports whether donations of type t carry an amount.
func (t Type) IsMonetary() bool {
	return t != TypeInKind
}

// Validate checks if the Donation has valid data.
// PRE: Donation struct is populated
// POST: Returns nil if valid, error otherwise
func (d *Donation) Validate() error {
	if d.DonorID == "" {
		return ErrEmptyDonor
	}
	if _, err := ParseType(string(d.Type)); err != nil {
		return err
	}
	if d.Type.IsMonetary() {
		if !d.Amount.Valid {
			return ErrAmountRequired
		}
		if !d.Amount.Decimal.IsPositive() {
			return ErrAmountNotPositive
		}
	} else {
		if d.Amount.Valid {
			return ErrAmountOnInKind
		}
		if strings.TrimSpace(d.Description) == "" {
			return ErrDescriptionRequired
		}
	}
	if len(d.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if len(d.CampaignName) > MaxCampaignNameLength {
		return ErrCampaignTooLong
	}
	if len(d.PaymentMethod) > MaxPaymentMethodLength {
		return ErrMethodTooLong
	}
	if !currencyPattern.MatchString(d.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}

// AmountOrZero returns the amount, or zero for in-kind donations.
func (d Donation) AmountOrZero() decimal.Decimal {
	if !d.Amount.Valid {
		return decimal.Zero
	}
	return d.Amount.Decimal
}

// Label renders a short human description such as "donated ZAR 250.00".
func (d Donation) Label() string {
	if !d.Amount.Valid {
		return "donated in-kind"
	}
	return fmt.Sprintf("donated %s %s", d.Currency, d.Amount.Decimal.StringFixed(2))
}

// PaymentReference builds the reference stored against a donation.
func PaymentReference(now time.Time) string {
	return fmt.Sprintf("REF-%d", now.UnixMilli())
}

// CardLast4 format-checks a card-like number and returns its last four
// digits. Spaces and dashes are ignored. Nothing is charged or verified.
func CardLast4(number string) (string, error) {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(number)
	if !cardPattern.MatchString(digits) {
		return "", ErrInvalidCardNumber
	}
	return digits[len(digits)-4:], nil
}
