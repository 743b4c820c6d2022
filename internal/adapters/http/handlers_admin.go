package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reliefportal/internal/adapters/http/middleware"
	"reliefportal/internal/application/listutil"
	"reliefportal/internal/application/orchestrators"
	"reliefportal/internal/application/projections"
	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/alert"
	"reliefportal/internal/domain/shift"
)

// Perf snapshot window and list size.
const (
	perfWindow = time.Hour
	perfTopN   = 10
)

// directoryUser is an account.User without credentials.
type directoryUser struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	FullName  string         `json:"full_name"`
	Phone     string         `json:"phone,omitempty"`
	Location  string         `json:"location,omitempty"`
	Roles     []account.Role `json:"roles"`
	CreatedAt time.Time      `json:"created_at"`
}

type usersView struct {
	Users []directoryUser   `json:"users"`
	Page  listutil.PageInfo `json:"page"`
}

// adminDashboardView is AdminDashboardResult with the directory stripped of hashes.
type adminDashboardView struct {
	RecentAlerts   []alert.Alert              `json:"recent_alerts"`
	UpcomingShifts []shift.Shift              `json:"upcoming_shifts"`
	Users          usersView                  `json:"users"`
	Stats          projections.AdminStats     `json:"stats"`
	RecentActivity []projections.ActivityItem `json:"recent_activity"`
}

func toDirectory(users []account.User) []directoryUser {
	out := make([]directoryUser, 0, len(users))
	for _, u := range users {
		roles := u.Roles
		if roles == nil {
			roles = []account.Role{}
		}
		out = append(out, directoryUser{
			ID:        u.Account.ID,
			Email:     u.Account.Email,
			FullName:  u.Profile.FullName,
			Phone:     u.Profile.Phone,
			Location:  u.Profile.Location,
			Roles:     roles,
			CreatedAt: u.Account.CreatedAt,
		})
	}
	return out
}

func (s *Server) adminDeps() projections.GetAdminDashboardDeps {
	st := s.deps.Stores
	return projections.GetAdminDashboardDeps{
		AccountStore:  st.Accounts,
		RoleStore:     st.Roles,
		AlertStore:    st.Alerts,
		ShiftStore:    st.Shifts,
		SignupStore:   st.Signups,
		DonationStore: st.Donations,
	}
}

func (s *Server) adminDashboard(r *http.Request) projections.AdminDashboardResult {
	return projections.QueryGetAdminDashboard(r.Context(), projections.GetAdminDashboardQuery{
		Now:   s.deps.Now(),
		Users: listutil.ParsePageParams(r.URL.Query()),
	}, s.adminDeps())
}

// actorID returns the signed-in user's id. Only valid behind a gate.
func actorID(r *http.Request) string {
	m, ok := middleware.ManagerFromContext(r.Context())
	if !ok {
		return ""
	}
	if st := m.State(); st.User != nil {
		return st.User.ID
	}
	return ""
}

func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, "admin", "Admin dashboard", s.adminDashboard(r))
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	result := s.adminDashboard(r)
	writeJSON(w, http.StatusOK, adminDashboardView{
		RecentAlerts:   result.RecentAlerts,
		UpcomingShifts: result.UpcomingShifts,
		Users:          usersView{Users: toDirectory(result.Users), Page: result.UsersPage},
		Stats:          result.Stats,
		RecentActivity: result.RecentActivity,
	})
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var input orchestrators.CreateAlertInput
	if err := strictDecode(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	input.ActorID = actorID(r)
	created, err := orchestrators.ExecuteCreateAlert(r.Context(), input, orchestrators.CreateAlertDeps{
		AlertStore: s.deps.Stores.Alerts,
		Now:        s.deps.Now,
		GenerateID: generateID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleSetAlertActive returns the handler for the activate or deactivate route.
func (s *Server) handleSetAlertActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := orchestrators.ExecuteSetAlertActive(r.Context(), orchestrators.SetAlertActiveInput{
			AlertID: chi.URLParam(r, "id"),
			Active:  active,
		}, orchestrators.SetAlertActiveDeps{AlertStore: s.deps.Stores.Alerts, Now: s.deps.Now})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func (s *Server) handleCreateShift(w http.ResponseWriter, r *http.Request) {
	var input orchestrators.CreateShiftInput
	if err := strictDecode(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	input.ActorID = actorID(r)
	created, err := orchestrators.ExecuteCreateShift(r.Context(), input, orchestrators.CreateShiftDeps{
		ShiftStore: s.deps.Stores.Shifts,
		Now:        s.deps.Now,
		GenerateID: generateID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCancelShift(w http.ResponseWriter, r *http.Request) {
	cancelled, err := orchestrators.ExecuteCancelShift(r.Context(), orchestrators.CancelShiftInput{
		ShiftID: chi.URLParam(r, "id"),
	}, orchestrators.CancelShiftDeps{ShiftStore: s.deps.Stores.Shifts, Now: s.deps.Now})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	result, err := projections.QueryGetUsers(r.Context(), projections.GetUsersQuery{
		Page: listutil.ParsePageParams(r.URL.Query()),
	}, projections.GetUsersDeps{AccountStore: s.deps.Stores.Accounts, RoleStore: s.deps.Stores.Roles})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usersView{Users: toDirectory(result.Users), Page: result.Page})
}

func (s *Server) handlePromoteUser(w http.ResponseWriter, r *http.Request) {
	var input orchestrators.PromoteUserInput
	if err := strictDecode(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	acct, err := orchestrators.ExecutePromoteUser(r.Context(), input, orchestrators.PromoteUserDeps{
		AccountStore: s.deps.Stores.Accounts,
		RoleStore:    s.deps.Stores.Roles,
		Now:          s.deps.Now,
		GenerateID:   generateID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": acct.ID, "email": acct.Email, "role": string(account.RoleAdmin)})
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	err := orchestrators.ExecuteRevokeRole(r.Context(), orchestrators.RevokeRoleInput{
		UserID:  chi.URLParam(r, "id"),
		Role:    chi.URLParam(r, "role"),
		ActorID: actorID(r),
	}, orchestrators.RevokeRoleDeps{RoleStore: s.deps.Stores.Roles})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, projections.QueryGetRecentActivity(r.Context(), s.adminDeps()))
}

func (s *Server) handlePerf(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collector == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Collector.Snapshot(s.deps.Now().Add(-perfWindow), perfTopN))
}
