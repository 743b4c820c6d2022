package projections

import (
	"bytes"
	"context"
	"html/template"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"reliefportal/internal/domain/alert"
)

// mdRenderer escapes raw HTML in alert descriptions (WithUnsafe is not set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// RenderMarkdown converts md to safe HTML. On a render failure the text is escaped.
func RenderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// GetActiveAlertsQuery carries input for the active alerts projection.
type GetActiveAlertsQuery struct {
	Limit       int            // 0 = all
	MinSeverity alert.Severity // empty = every severity
}

// GetActiveAlertsDeps holds dependencies for the active alerts projection.
type GetActiveAlertsDeps struct {
	AlertStore AlertStore
}

// AlertView is an alert with its description rendered.
type AlertView struct {
	alert.Alert
	DescriptionHTML template.HTML
}

// QueryGetActiveAlerts lists active alerts newest first.
// POST: Returns an empty, non-nil slice when there are none
func QueryGetActiveAlerts(ctx context.Context, query GetActiveAlertsQuery, deps GetActiveAlertsDeps) ([]AlertView, error) {
	alerts, err := deps.AlertStore.ListActive(ctx, query.Limit)
	if err != nil {
		return []AlertView{}, err
	}
	views := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		if query.MinSeverity != "" && !a.Severity.AtLeast(query.MinSeverity) {
			continue
		}
		views = append(views, AlertView{Alert: a, DescriptionHTML: RenderMarkdown(a.Description)})
	}
	return views, nil
}
