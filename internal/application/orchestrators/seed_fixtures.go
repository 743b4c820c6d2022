package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/apperr"
)

// FixtureFile is the YAML layout accepted by SeedFixtures. Users are
// referenced by email everywhere else in the file.
type FixtureFile struct {
	Users     []FixtureUser     `yaml:"users" validate:"dive"`
	Alerts    []FixtureAlert    `yaml:"alerts" validate:"dive"`
	Shifts    []FixtureShift    `yaml:"shifts" validate:"dive"`
	Donations []FixtureDonation `yaml:"donations" validate:"dive"`
}

// FixtureUser is one account with its roles.
type FixtureUser struct {
	Email    string   `yaml:"email" validate:"required,email"`
	Password string   `yaml:"password" validate:"required"`
	FullName string   `yaml:"full_name"`
	Phone    string   `yaml:"phone"`
	Location string   `yaml:"location"`
	Roles    []string `yaml:"roles" validate:"required,min=1,dive,oneof=admin volunteer donor"`
}

// FixtureAlert is one emergency alert.
type FixtureAlert struct {
	Title       string `yaml:"title" validate:"required"`
	Description string `yaml:"description" validate:"required"`
	Severity    string `yaml:"severity" validate:"required"`
	Location    string `yaml:"location" validate:"required"`
	Active      *bool  `yaml:"active"`
	CreatedBy   string `yaml:"created_by" validate:"required,email"`
}

// FixtureShift is one shift or recurring series.
type FixtureShift struct {
	Title         string    `yaml:"title" validate:"required"`
	Description   string    `yaml:"description"`
	Location      string    `yaml:"location" validate:"required"`
	Start         time.Time `yaml:"start" validate:"required"`
	End           time.Time `yaml:"end" validate:"required"`
	MaxVolunteers int       `yaml:"max_volunteers" validate:"min=1"`
	Recurrence    string    `yaml:"recurrence"`
	CreatedBy     string    `yaml:"created_by" validate:"required,email"`
}

// FixtureDonation is one donation.
type FixtureDonation struct {
	Donor        string `yaml:"donor" validate:"required,email"`
	Type         string `yaml:"type" validate:"required"`
	Amount       string `yaml:"amount"`
	Currency     string `yaml:"currency"`
	Description  string `yaml:"description"`
	CampaignName string `yaml:"campaign_name"`
}

// SeedFixturesInput carries the raw YAML document.
type SeedFixturesInput struct {
	Data []byte
}

// SeedFixturesDeps holds dependencies for SeedFixtures.
type SeedFixturesDeps struct {
	Auth          IdentitySignUp
	AccountStore  AccountLookupStore
	RoleStore     RoleStoreForGrant
	AlertStore    AlertStoreForToggle
	ShiftStore    ShiftStoreForCreate
	DonationStore DonationStoreForCreate
	Now           func() time.Time
	GenerateID    func() string
}

// SeedFixturesResult counts what was created.
type SeedFixturesResult struct {
	UsersCreated int
	Alerts       int
	Shifts       int
	Donations    int
}

// ParseFixtures decodes and validates a fixture document. Unknown keys are rejected.
func ParseFixtures(data []byte) (FixtureFile, error) {
	var file FixtureFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return FixtureFile{}, apperr.Validation(fmt.Errorf("parse fixtures: %w", err))
	}
	if err := validateInput(file); err != nil {
		return FixtureFile{}, err
	}
	return file, nil
}

// ExecuteSeedFixtures loads a fixture document. Existing users are reused,
// so seeding users twice is safe; alerts, shifts and donations are appended.
// PRE: Data is a YAML FixtureFile
// POST: Stops at the first failing record; earlier records stay written
func ExecuteSeedFixtures(ctx context.Context, input SeedFixturesInput, deps SeedFixturesDeps) (SeedFixturesResult, error) {
	file, err := ParseFixtures(input.Data)
	if err != nil {
		return SeedFixturesResult{}, err
	}

	var result SeedFixturesResult
	ids := make(map[string]string)
	for i, u := range file.Users {
		profile := account.Profile{FullName: u.FullName, Phone: u.Phone, Location: u.Location}
		roles := make([]account.Role, 0, len(u.Roles))
		for _, r := range u.Roles {
			roles = append(roles, account.Role(r))
		}
		id, created, err := ensureUser(ctx, u.Email, u.Password, profile, roles, deps.Auth, deps.AccountStore)
		if err != nil {
			return result, fmt.Errorf("users[%d]: %w", i, err)
		}
		ids[account.NormalizeEmail(u.Email)] = id
		if created {
			result.UsersCreated++
			continue
		}
		for _, r := range roles {
			err := deps.RoleStore.Add(ctx, account.RoleAssignment{
				ID:        newID(deps.GenerateID),
				UserID:    id,
				Role:      r,
				CreatedAt: clock(deps.Now),
			})
			if err != nil {
				return result, fmt.Errorf("users[%d]: %w", i, apperr.Store(err))
			}
		}
	}

	userID := func(email string) (string, error) {
		key := account.NormalizeEmail(email)
		if id, ok := ids[key]; ok {
			return id, nil
		}
		acct, err := deps.AccountStore.GetByEmail(ctx, key)
		if err != nil {
			return "", err
		}
		ids[key] = acct.ID
		return acct.ID, nil
	}

	for i, a := range file.Alerts {
		creator, err := userID(a.CreatedBy)
		if err != nil {
			return result, fmt.Errorf("alerts[%d]: %w", i, err)
		}
		created, err := ExecuteCreateAlert(ctx, CreateAlertInput{
			Title: a.Title, Description: a.Description, Severity: a.Severity, Location: a.Location, ActorID: creator,
		}, CreateAlertDeps{AlertStore: deps.AlertStore, Now: deps.Now, GenerateID: deps.GenerateID})
		if err != nil {
			return result, fmt.Errorf("alerts[%d]: %w", i, err)
		}
		if a.Active != nil && !*a.Active {
			_, err := ExecuteSetAlertActive(ctx, SetAlertActiveInput{AlertID: created.ID, Active: false},
				SetAlertActiveDeps{AlertStore: deps.AlertStore, Now: deps.Now})
			if err != nil {
				return result, fmt.Errorf("alerts[%d]: %w", i, err)
			}
		}
		result.Alerts++
	}

	for i, s := range file.Shifts {
		creator, err := userID(s.CreatedBy)
		if err != nil {
			return result, fmt.Errorf("shifts[%d]: %w", i, err)
		}
		created, err := ExecuteCreateShift(ctx, CreateShiftInput{
			Title: s.Title, Description: s.Description, Location: s.Location,
			StartTime: s.Start, EndTime: s.End, MaxVolunteers: s.MaxVolunteers,
			Recurrence: s.Recurrence, ActorID: creator,
		}, CreateShiftDeps{ShiftStore: deps.ShiftStore, Now: deps.Now, GenerateID: deps.GenerateID})
		if err != nil {
			return result, fmt.Errorf("shifts[%d]: %w", i, err)
		}
		result.Shifts += len(created)
	}

	for i, d := range file.Donations {
		donor, err := userID(d.Donor)
		if err != nil {
			return result, fmt.Errorf("donations[%d]: %w", i, err)
		}
		_, err = ExecuteRecordDonation(ctx, RecordDonationInput{
			Type: d.Type, Amount: d.Amount, Currency: d.Currency,
			Description: d.Description, CampaignName: d.CampaignName, DonorID: donor,
		}, RecordDonationDeps{DonationStore: deps.DonationStore, Now: deps.Now, GenerateID: deps.GenerateID})
		if err != nil {
			return result, fmt.Errorf("donations[%d]: %w", i, err)
		}
		result.Donations++
	}

	zap.L().Info("seed_event",
		zap.String("event", "fixtures_loaded"),
		zap.Int("users_created", result.UsersCreated),
		zap.Int("alerts", result.Alerts),
		zap.Int("shifts", result.Shifts),
		zap.Int("donations", result.Donations),
	)
	return result, nil
}
