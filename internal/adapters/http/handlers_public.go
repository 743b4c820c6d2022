package web

import (
	"context"
	"net/http"
	"time"

	"reliefportal/internal/application/listutil"
	"reliefportal/internal/application/projections"
	"reliefportal/internal/domain/alert"
	"reliefportal/internal/domain/apperr"
)

// Home page section sizes.
const (
	homeAlertLimit    = 5
	maxAlertListLimit = 100
	healthTimeout     = 2 * time.Second
)

// homeView is what the home page and GET / as JSON carry.
type homeView struct {
	Stats  projections.PublicStatsResult `json:"stats"`
	Alerts []projections.AlertView       `json:"alerts"`
}

// handleHome serves the public landing page: counters and the newest active alerts.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := homeView{
		Stats: projections.QueryGetPublicStats(ctx, projections.GetPublicStatsDeps{
			RoleStore:     s.deps.Stores.Roles,
			AlertStore:    s.deps.Stores.Alerts,
			DonationStore: s.deps.Stores.Donations,
		}),
	}
	alerts, err := projections.QueryGetActiveAlerts(ctx,
		projections.GetActiveAlertsQuery{Limit: homeAlertLimit},
		projections.GetActiveAlertsDeps{AlertStore: s.deps.Stores.Alerts},
	)
	if err != nil {
		// The page still renders; the alert list is shown empty.
		logFailure(r, err)
	}
	view.Alerts = alerts

	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, view)
		return
	}
	renderPage(w, r, "home", "Relief Portal", view)
}

// handleAuthPage serves the combined sign-in / sign-up page.
func (s *Server) handleAuthPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, "auth", "Sign in", map[string]any{"Error": r.URL.Query().Get("error")})
}

// handleHealth reports whether the store answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.deps.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleActiveAlerts lists active alerts, optionally filtered by ?min_severity=.
func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := projections.GetActiveAlertsQuery{
		Limit: listutil.ParseLimit(q, 0, maxAlertListLimit),
	}
	if raw := q.Get("min_severity"); raw != "" {
		sev, err := alert.ParseSeverity(raw)
		if err != nil {
			writeError(w, r, apperr.Validation(err))
			return
		}
		query.MinSeverity = sev
	}
	alerts, err := projections.QueryGetActiveAlerts(r.Context(), query, projections.GetActiveAlertsDeps{AlertStore: s.deps.Stores.Alerts})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// handlePublicStats serves the home page counters.
func (s *Server) handlePublicStats(w http.ResponseWriter, r *http.Request) {
	result := projections.QueryGetPublicStats(r.Context(), projections.GetPublicStatsDeps{
		RoleStore:     s.deps.Stores.Roles,
		AlertStore:    s.deps.Stores.Alerts,
		DonationStore: s.deps.Stores.Donations,
	})
	writeJSON(w, http.StatusOK, result)
}
