package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"reliefportal/internal/application/session"
	"reliefportal/internal/domain/access"
	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/identity"
)

// SessionCookieName carries the opaque session id for browser clients.
const SessionCookieName = "portal_session"

// SecureCookies sets the Secure flag on the session cookie.
var SecureCookies = false

type contextKey string

const managerContextKey contextKey = "session_manager"

// TokenVerifier checks bearer access tokens.
type TokenVerifier interface {
	Verify(token string) (identity.Session, error)
}

// ManagerSource returns the session manager for a live session id.
type ManagerSource interface {
	Get(ctx context.Context, sessionID string) (*session.Manager, bool)
}

// Auth resolves the caller's session from a bearer token or the session
// cookie and puts its Manager in the request context. It does NOT block
// anonymous requests; use RequirePage, RequireAPI or RequireUser for that.
func Auth(tokens TokenVerifier, managers ManagerSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := sessionID(r, tokens); id != "" {
				if m, ok := managers.Get(r.Context(), id); ok {
					r = r.WithContext(ContextWithManager(r.Context(), m))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionID(r *http.Request, tokens TokenVerifier) string {
	if raw := bearerToken(r); raw != "" {
		sess, err := tokens.Verify(raw)
		if err != nil {
			return ""
		}
		return sess.ID
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// ManagerFromContext returns the caller's session manager.
func ManagerFromContext(ctx context.Context) (*session.Manager, bool) {
	m, ok := ctx.Value(managerContextKey).(*session.Manager)
	return m, ok && m != nil
}

// ContextWithManager returns a context carrying m.
func ContextWithManager(ctx context.Context, m *session.Manager) context.Context {
	return context.WithValue(ctx, managerContextKey, m)
}

// RouteState reads the access-decision input from the caller's manager.
// Anonymous callers get the zero state.
func RouteState(ctx context.Context) access.RouteState {
	m, ok := ManagerFromContext(ctx)
	if !ok {
		return access.RouteState{}
	}
	st := m.State()
	return access.RouteState{Loading: st.Loading, HasUser: st.SignedIn(), Role: st.Role}
}

// RequirePage gates an HTML page on role. The decision is made on every
// request from the manager's current state, so a revoked role takes effect
// on the next navigation.
func RequirePage(role account.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch d := access.Decide(RouteState(r.Context()), role); d {
			case access.Allow:
				next.ServeHTTP(w, r)
			case access.Wait:
				writeWait(w)
			default:
				http.Redirect(w, r, d.Target(), http.StatusSeeOther)
			}
		})
	}
}

// RequireAPI gates a JSON endpoint on role, answering 401 or 403 instead of redirecting.
func RequireAPI(role account.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch access.Decide(RouteState(r.Context()), role) {
			case access.Allow:
				next.ServeHTTP(w, r)
			case access.Wait:
				writeWait(w)
			case access.RedirectSignIn:
				WriteJSONError(w, http.StatusUnauthorized, "credential", "sign in required")
			default:
				WriteJSONError(w, http.StatusForbidden, "forbidden", "your role does not allow this")
			}
		})
	}
}

// RequireUser gates a JSON endpoint on any signed-in user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := RouteState(r.Context())
		switch {
		case st.Loading:
			writeWait(w)
		case !st.HasUser:
			WriteJSONError(w, http.StatusUnauthorized, "credential", "sign in required")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func writeWait(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	WriteJSONError(w, http.StatusServiceUnavailable, "loading", "session is still loading")
}

// SetSessionCookie sets the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, sessionID string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		Expires:  expires,
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
