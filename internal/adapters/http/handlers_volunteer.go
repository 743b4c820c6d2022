package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"reliefportal/internal/adapters/http/middleware"
	"reliefportal/internal/application/coordinator"
	"reliefportal/internal/application/session"
	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/shift"
	"reliefportal/internal/domain/signup"
)

// shiftMutation names a coordinator operation routed by handleShiftMutation.
type shiftMutation int

const (
	mutationSignUp shiftMutation = iota
	mutationCancel
	mutationComplete
)

// shiftRow is one available shift with the caller's pair state.
type shiftRow struct {
	Shift shift.Shift      `json:"shift"`
	State signup.PairState `json:"state"`
}

type volunteerPage struct {
	View   coordinator.View
	Shifts []shiftRow
}

func actorOf(st session.State) coordinator.Actor {
	return coordinator.Actor{UserID: st.User.ID, IsAdmin: account.HasRole(st.Roles, account.RoleAdmin)}
}

// coordinatorFor returns the caller's coordinator, creating it on first use.
// A cached one is replaced when the actor changed, e.g. after an admin grant.
func (s *Server) coordinatorFor(m *session.Manager) *coordinator.Coordinator {
	actor := actorOf(m.State())
	id := m.SessionID()

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.coordinators[id]; ok && c.Actor() == actor {
		return c
	}
	c := coordinator.New(actor, coordinator.Deps{
		ShiftStore:      s.deps.Stores.Shifts,
		SignupStore:     s.deps.Stores.Signups,
		EnforceCapacity: s.cfg.EnforceCapacity,
		Now:             s.deps.Now,
		GenerateID:      generateID,
	})
	s.coordinators[id] = c
	return c
}

func (s *Server) dropCoordinator(sessionID string) {
	s.mu.Lock()
	delete(s.coordinators, sessionID)
	s.mu.Unlock()
}

// handleShiftMutation returns the handler for a signup, cancel or complete route.
// The response body is the re-fetched volunteer dashboard.
func (s *Server) handleShiftMutation(op shiftMutation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, _ := middleware.ManagerFromContext(r.Context())
		c := s.coordinatorFor(m)
		shiftID := chi.URLParam(r, "id")

		var (
			view coordinator.View
			err  error
		)
		switch op {
		case mutationSignUp:
			view, err = c.SignUp(r.Context(), shiftID)
		case mutationCancel:
			view, err = c.Cancel(r.Context(), shiftID)
		case mutationComplete:
			view, err = c.MarkComplete(r.Context(), shiftID)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) volunteerView(r *http.Request) (coordinator.View, error) {
	m, _ := middleware.ManagerFromContext(r.Context())
	return s.coordinatorFor(m).Refresh(r.Context())
}

func (s *Server) handleVolunteerDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := s.volunteerView(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleVolunteerPage(w http.ResponseWriter, r *http.Request) {
	view, err := s.volunteerView(r)
	if err != nil {
		// The page renders with whatever loaded.
		logFailure(r, err)
	}
	rows := make([]shiftRow, 0, len(view.AvailableShifts))
	for _, sh := range view.AvailableShifts {
		rows = append(rows, shiftRow{Shift: sh, State: view.PairState(sh.ID)})
	}
	renderPage(w, r, "volunteer", "Volunteer dashboard", volunteerPage{View: view, Shifts: rows})
}
