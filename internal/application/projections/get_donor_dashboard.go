package projections

import (
	"context"

	"github.com/shopspring/decimal"

	"reliefportal/internal/domain/donation"
	"reliefportal/internal/domain/stats"
)

// GetDonorDashboardQuery carries input for the donor dashboard projection.
type GetDonorDashboardQuery struct {
	DonorID string
	Limit   int // 0 = all
}

// GetDonorDashboardDeps holds dependencies for the donor dashboard projection.
type GetDonorDashboardDeps struct {
	DonationStore DonationStore
}

// DonorDashboardResult carries the output of the donor dashboard projection.
type DonorDashboardResult struct {
	Donations    []donation.Donation
	TotalDonated decimal.Decimal
}

// QueryGetDonorDashboard loads the donor's donations newest first and totals them.
// PRE: DonorID is non-empty
// POST: On a store error the list is empty and the total zero
func QueryGetDonorDashboard(ctx context.Context, query GetDonorDashboardQuery, deps GetDonorDashboardDeps) (DonorDashboardResult, error) {
	donations, err := deps.DonationStore.ListForDonor(ctx, query.DonorID, query.Limit)
	if err != nil {
		return DonorDashboardResult{Donations: []donation.Donation{}, TotalDonated: decimal.Zero}, err
	}
	if donations == nil {
		donations = []donation.Donation{}
	}
	return DonorDashboardResult{
		Donations:    donations,
		TotalDonated: stats.TotalDonated(donations),
	}, nil
}
