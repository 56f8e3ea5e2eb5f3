package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/lmdevv/tabby-sub002/internal/errors"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// WorkspacesPageData is the template data for the workspace list page.
type WorkspacesPageData struct {
	PageData
	Workspaces     []workspaceRow
	UnassignedTabs int
}

type workspaceRow struct {
	ID           int64
	Name         string
	Active       bool
	ActiveTabs   int
	ArchivedTabs int
	LastOpened   int64
}

// SnapshotPageData is the template data for the snapshot view.
type SnapshotPageData struct {
	PageData
	RenderedHTML template.HTML
	ExportLinks  []string
	SnapshotID   int64
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} · tabby</title>
</head>
<body>
<header><a href="/workspaces">tabby</a> <small>{{.Version}}</small></header>
<main>{{template "content" .}}</main>
</body>
</html>{{end}}`

const workspacesHTML = `{{define "content"}}
<h1>Workspaces</h1>
<table>
<thead><tr><th>Name</th><th>Active tabs</th><th>Saved tabs</th><th>Last opened</th></tr></thead>
<tbody>
{{range .Workspaces}}<tr{{if .Active}} class="active"{{end}}>
<td>{{.Name}}{{if .Active}} <strong>(active)</strong>{{end}}</td>
<td>{{.ActiveTabs}}</td>
<td>{{.ArchivedTabs}}</td>
<td>{{formatTime .LastOpened}}</td>
</tr>
{{else}}<tr><td colspan="4">No workspaces yet.</td></tr>
{{end}}</tbody>
</table>
{{if .UnassignedTabs}}<p>{{.UnassignedTabs}} unassigned tabs.</p>{{end}}
{{end}}`

const snapshotHTML = `{{define "content"}}
<article>{{.RenderedHTML}}</article>
<p>Export: {{range .ExportLinks}}<a href="/api/snapshots/{{$.SnapshotID}}/export?format={{.}}">{{.}}</a> {{end}}</p>
{{end}}`

const errorHTML = `{{define "content"}}
<h1>Error {{.StatusCode}}</h1>
<p>{{.Message}}</p>
{{end}}`

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *zap.Logger
}

// NewRenderer parses the page templates.
func NewRenderer(version string, logger *zap.Logger) *Renderer {
	funcMap := template.FuncMap{
		"formatTime": formatTime,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).Parse(layoutHTML))

	pages := map[string]string{
		"workspaces": workspacesHTML,
		"snapshot":   snapshotHTML,
		"error":      errorHTML,
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, src := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.Parse(src))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
	}
}

// renderPage renders a named page template with HTTP 200.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("template not found", zap.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template execution failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// errorPayload resolves err to its typed form. A request whose context is
// done reports CANCELLED; untyped errors become INTERNAL.
func errorPayload(ctx context.Context, err error) *errors.TabbyError {
	if ctx.Err() != nil && !errors.Is(err, errors.ErrCancelled) {
		return errors.NewCancelled("http request")
	}
	te, ok := errors.As(err)
	if !ok {
		return errors.NewInternal(err)
	}
	return te
}

// renderAPIError writes the JSON error envelope. INTERNAL and
// TRANSACTION_FAILED errors never expose their details.
func (r *Renderer) renderAPIError(w http.ResponseWriter, req *http.Request, err error) {
	te := errorPayload(req.Context(), err)
	if te.Status >= 500 {
		r.logger.Error("request failed",
			zap.String("path", req.URL.Path),
			zap.Error(err),
			zap.Any("details", te.Details))
	}

	body := map[string]any{
		"code":    string(te.Code),
		"message": te.Message,
		"status":  te.Status,
	}
	if te.Code != errors.ErrInternal && te.Code != errors.ErrTransactionFailed && len(te.Details) > 0 {
		body["details"] = te.Details
	}
	renderJSON(w, te.Status, map[string]any{"error": body})
}

// renderError renders an error with content negotiation: JSON when the
// client asks for it, the error page otherwise.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		r.renderAPIError(w, req, err)
		return
	}
	te := errorPayload(req.Context(), err)
	if te.Status >= 500 {
		r.logger.Error("page failed", zap.String("path", req.URL.Path), zap.Error(err))
	}
	r.renderPageStatus(w, te.Status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", te.Status),
			Version: r.version,
		},
		StatusCode: te.Status,
		Message:    te.Message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark. Raw HTML in
// the source is not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix millisecond timestamp as "2006-01-02 15:04" UTC.
func formatTime(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}
