package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/adapters/http/middleware"
	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/change"
)

// Change stream tuning.
const (
	changeBuffer      = 64
	heartbeatInterval = 25 * time.Second
)

// viewer decides which changes a stream subscriber may see.
type viewer struct {
	userID  string
	isAdmin bool
}

func (v viewer) allowed(c change.Change) bool {
	switch {
	case v.isAdmin:
		return true
	case c.Table == change.TableAlerts:
		return true
	case v.userID == "":
		return false
	case c.Table == change.TableShifts:
		return true
	}
	return c.OwnerID == v.userID
}

// parseTables reads ?tables=a,b. Empty means every table.
func parseTables(raw string) (map[string]bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if !change.IsWatched(t) {
			return nil, apperr.Validationf("unknown table %q", t)
		}
		out[t] = true
	}
	return out, nil
}

// handleChanges streams committed row changes as Server-Sent Events.
// Anonymous callers see alert changes only; signed-in non-admins also see
// shift changes and rows they own.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	tables, err := parseTables(r.URL.Query().Get("tables"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		internalError(w, fmt.Errorf("streaming unsupported by %T", w))
		return
	}

	var v viewer
	if m, ok := middleware.ManagerFromContext(r.Context()); ok {
		if st := m.State(); st.User != nil {
			v = viewer{userID: st.User.ID, isAdmin: account.HasRole(st.Roles, account.RoleAdmin)}
		}
	}

	events := make(chan change.Change, changeBuffer)
	unsubscribe := s.deps.Hub.Subscribe(change.AllTables, func(c change.Change) {
		if (tables != nil && !tables[c.Table]) || !v.allowed(c) {
			return
		}
		select {
		case events <- c:
		default:
			zap.L().Warn("changefeed_event", zap.String("event", "stream_dropped"), zap.String("table", c.Table), zap.String("user_id", v.userID))
		}
	})
	defer unsubscribe()

	// Long-lived; lift the server write deadline where the writer allows it.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case c := <-events:
			data, err := json.Marshal(c)
			if err != nil {
				zap.L().Error("changefeed_event", zap.String("event", "encode_failed"), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
