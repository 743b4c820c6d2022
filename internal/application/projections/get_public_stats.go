package projections

import (
	"context"

	"github.com/shopspring/decimal"

	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/stats"
)

// GetPublicStatsDeps holds dependencies for the home page stats.
type GetPublicStatsDeps struct {
	RoleStore     RoleStore
	AlertStore    AlertStore
	DonationStore DonationStore
}

// PublicStatsResult carries the three numbers shown on the home page.
type PublicStatsResult struct {
	ActiveVolunteers  int
	ActiveEmergencies int
	TotalDonations    decimal.Decimal
}

// QueryGetPublicStats computes the home page counters. A failed count shows as zero.
func QueryGetPublicStats(ctx context.Context, deps GetPublicStatsDeps) PublicStatsResult {
	result := PublicStatsResult{TotalDonations: decimal.Zero}

	if rows, err := deps.RoleStore.ListAll(ctx); err == nil {
		result.ActiveVolunteers = stats.RoleCounts(rows)[account.RoleVolunteer]
	}
	if n, err := deps.AlertStore.CountActive(ctx); err == nil {
		result.ActiveEmergencies = n
	}
	if total, err := deps.DonationStore.SumAmounts(ctx, ""); err == nil {
		result.TotalDonations = total
	}
	return result
}
