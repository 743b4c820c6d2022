package web

import (
	"net/http"
	"time"

	"reliefportal/internal/application/listutil"
	"reliefportal/internal/application/orchestrators"
	"reliefportal/internal/application/projections"
)

const maxDonationListLimit = 500

// donationView is a donation on the wire, amount as a fixed two-place string.
type donationView struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	Amount           string    `json:"amount,omitempty"`
	Currency         string    `json:"currency"`
	Label            string    `json:"label"`
	Description      string    `json:"description,omitempty"`
	CampaignName     string    `json:"campaign_name,omitempty"`
	PaymentMethod    string    `json:"payment_method,omitempty"`
	CardLast4        string    `json:"card_last4,omitempty"`
	PaymentReference string    `json:"payment_reference"`
	CreatedAt        time.Time `json:"created_at"`
}

func (s *Server) donorDashboard(r *http.Request) (projections.DonorDashboardResult, error) {
	return projections.QueryGetDonorDashboard(r.Context(), projections.GetDonorDashboardQuery{
		DonorID: actorID(r),
		Limit:   listutil.ParseLimit(r.URL.Query(), 0, maxDonationListLimit),
	}, projections.GetDonorDashboardDeps{DonationStore: s.deps.Stores.Donations})
}

func (s *Server) handleDonorDashboard(w http.ResponseWriter, r *http.Request) {
	result, err := s.donorDashboard(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]donationView, 0, len(result.Donations))
	for _, d := range result.Donations {
		v := donationView{
			ID:               d.ID,
			Type:             string(d.Type),
			Currency:         d.Currency,
			Label:            d.Label(),
			Description:      d.Description,
			CampaignName:     d.CampaignName,
			PaymentMethod:    d.PaymentMethod,
			CardLast4:        d.CardLast4,
			PaymentReference: d.PaymentReference,
			CreatedAt:        d.CreatedAt,
		}
		if d.Amount.Valid {
			v.Amount = d.Amount.Decimal.StringFixed(2)
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"donations":     views,
		"total_donated": result.TotalDonated.StringFixed(2),
	})
}

func (s *Server) handleDonorPage(w http.ResponseWriter, r *http.Request) {
	result, err := s.donorDashboard(r)
	if err != nil {
		logFailure(r, err)
	}
	renderPage(w, r, "donor", "Donor dashboard", result)
}

func (s *Server) handleRecordDonation(w http.ResponseWriter, r *http.Request) {
	var input orchestrators.RecordDonationInput
	if err := strictDecode(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	input.DonorID = actorID(r)
	d, err := orchestrators.ExecuteRecordDonation(r.Context(), input, orchestrators.RecordDonationDeps{
		DonationStore: s.deps.Stores.Donations,
		Now:           s.deps.Now,
		GenerateID:    generateID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":                d.ID,
		"label":             d.Label(),
		"payment_reference": d.PaymentReference,
	})
}
