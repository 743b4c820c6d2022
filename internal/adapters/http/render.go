package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/csrf"
	"github.com/shopspring/decimal"

	"reliefportal/internal/adapters/http/middleware"
	"reliefportal/internal/application/projections"
	"reliefportal/internal/application/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"markdown": projections.RenderMarkdown,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2 Jan 2006 15:04")
	},
	"money": func(d decimal.Decimal) string {
		return d.StringFixed(2)
	},
}

// pages maps a page name to its layout+content template set.
var pages = func() map[string]*template.Template {
	out := make(map[string]*template.Template)
	for _, name := range []string{"home", "auth", "admin", "volunteer", "donor"} {
		out[name] = template.Must(template.New(name).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return out
}()

// pageData is what every page template receives.
type pageData struct {
	Title     string
	State     session.State
	CSRFField template.HTML
	Data      any
}

// renderPage renders into a buffer first so a template failure never sends a half page.
func renderPage(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	pd := pageData{Title: title, CSRFField: csrf.TemplateField(r), Data: data}
	if m, ok := middleware.ManagerFromContext(r.Context()); ok {
		pd.State = m.State()
	}
	var buf bytes.Buffer
	if err := pages[name].ExecuteTemplate(&buf, "layout", pd); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
