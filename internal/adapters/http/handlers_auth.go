package web

import (
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/adapters/http/middleware"
	"reliefportal/internal/application/session"
	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/identity"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Role     string `json:"role"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type selectRoleRequest struct {
	Role string `json:"role"`
}

// userView is the signed-in user as clients see it.
type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	FullName    string `json:"full_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Location    string `json:"location,omitempty"`
}

// stateView is session.State on the wire.
type stateView struct {
	SignedIn bool           `json:"signed_in"`
	Loading  bool           `json:"loading"`
	User     *userView      `json:"user,omitempty"`
	Role     account.Role   `json:"role,omitempty"`
	Roles    []account.Role `json:"roles"`
	Home     string         `json:"home,omitempty"`
}

type tokenView struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	State       stateView `json:"state"`
}

func newStateView(st session.State) stateView {
	v := stateView{SignedIn: st.SignedIn(), Loading: st.Loading, Role: st.Role, Roles: st.Roles}
	if v.Roles == nil {
		v.Roles = []account.Role{}
	}
	if st.User != nil {
		v.User = &userView{
			ID:          st.User.ID,
			Email:       st.User.Email,
			DisplayName: st.User.DisplayName(),
			FullName:    st.User.Profile.FullName,
			Phone:       st.User.Profile.Phone,
			Location:    st.User.Profile.Location,
		}
	}
	if st.Role != account.NoRole {
		v.Home = st.Role.HomePath()
	}
	return v
}

// decodeBody fills v from a JSON body, or from the posted form via fromForm.
func decodeBody(r *http.Request, v any, fromForm func(url.Values)) error {
	if isJSONRequest(r) {
		return strictDecode(r, v)
	}
	if err := r.ParseForm(); err != nil {
		return apperr.Validationf("invalid form: %v", err)
	}
	fromForm(r.PostForm)
	return nil
}

// redirectAuthError sends a form client back to the auth page with the error shown.
func redirectAuthError(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(r, err)
	http.Redirect(w, r, "/auth?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
}

// handleSignUp creates an account with one self-service role. It does not
// sign the caller in.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	err := decodeBody(r, &req, func(f url.Values) {
		req = signUpRequest{
			Email:    f.Get("email"),
			Password: f.Get("password"),
			FullName: f.Get("full_name"),
			Phone:    f.Get("phone"),
			Location: f.Get("location"),
			Role:     f.Get("role"),
		}
	})
	var user identity.Identity
	if err == nil {
		user, err = s.signUp(r, req)
	}
	if !isJSONRequest(r) {
		if err != nil {
			redirectAuthError(w, r, err)
			return
		}
		http.Redirect(w, r, "/auth?signed_up=1", http.StatusSeeOther)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userView{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName(), FullName: user.Profile.FullName})
}

func (s *Server) signUp(r *http.Request, req signUpRequest) (identity.Identity, error) {
	role, err := account.ParseRole(req.Role)
	if err != nil {
		return identity.Identity{}, apperr.Validation(err)
	}
	m := s.deps.Registry.New()
	defer m.Close()
	return m.SignUp(r.Context(), session.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
		Location: req.Location,
		Role:     role,
	})
}

// handleSignIn opens a session, sets the session cookie and returns the access token.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeBody(r, &req, func(f url.Values) {
		req = signInRequest{Email: f.Get("email"), Password: f.Get("password")}
	}); err != nil {
		s.failSignIn(w, r, err)
		return
	}

	m := s.deps.Registry.New()
	sess, err := m.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		m.SignOut(r.Context())
		m.Close()
		s.failSignIn(w, r, err)
		return
	}
	s.deps.Registry.Attach(m)
	middleware.SetSessionCookie(w, sess.ID, sess.ExpiresAt)

	st := m.State()
	if !isJSONRequest(r) {
		target := "/"
		if st.Role != account.NoRole {
			target = st.Role.HomePath()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, tokenView{
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.ExpiresAt,
		State:       newStateView(st),
	})
}

func (s *Server) failSignIn(w http.ResponseWriter, r *http.Request, err error) {
	if !isJSONRequest(r) {
		redirectAuthError(w, r, err)
		return
	}
	writeError(w, r, err)
}

// handleSignOut ends the caller's session, if any, and clears the cookie.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if m, ok := middleware.ManagerFromContext(r.Context()); ok {
		m.SignOut(r.Context())
	}
	middleware.ClearSessionCookie(w)
	if !isJSONRequest(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSession returns the caller's auth state; anonymous callers get signed_in false.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var st session.State
	if m, ok := middleware.ManagerFromContext(r.Context()); ok {
		st = m.State()
	}
	writeJSON(w, http.StatusOK, newStateView(st))
}

// handleRefresh issues a fresh access token for the caller's session.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	m, _ := middleware.ManagerFromContext(r.Context())
	sess, err := s.deps.Auth.Refresh(r.Context(), m.SessionID())
	if err != nil {
		writeError(w, r, err)
		return
	}
	zap.L().Debug("auth_event", zap.String("event", "token_refreshed"), zap.String("user_id", sess.UserID))
	writeJSON(w, http.StatusOK, tokenView{
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.ExpiresAt,
		State:       newStateView(m.State()),
	})
}

// handleSelectRole switches the caller's primary role among the roles they hold.
func (s *Server) handleSelectRole(w http.ResponseWriter, r *http.Request) {
	m, _ := middleware.ManagerFromContext(r.Context())
	var req selectRoleRequest
	if err := decodeBody(r, &req, func(f url.Values) { req.Role = f.Get("role") }); err != nil {
		writeError(w, r, err)
		return
	}
	role, err := account.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, apperr.Validation(err))
		return
	}
	if err := m.SelectRole(role); err != nil {
		writeError(w, r, err)
		return
	}
	if !isJSONRequest(r) {
		http.Redirect(w, r, role.HomePath(), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, newStateView(m.State()))
}
