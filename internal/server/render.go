package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/sfaret/stipslite/internal/auth"
)

//go:embed templates static
var assets embed.FS

// Raw HTML in model answers is escaped: WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

var funcs = template.FuncMap{
	"markdown":  renderMarkdown,
	"roleLabel": auth.RoleLabel,
	"ago":       func(t time.Time) string { return humanize.Time(t) },
	"money": func(v float64) string {
		if v == 0 {
			return "Free"
		}
		return "GH₵" + humanize.FormatFloat("#,###.##", v)
	},
	"join": strings.Join,
}

// renderer holds one parsed template set per page, each joined with the layout.
type renderer struct {
	pages map[string]*template.Template
}

func mustParseTemplates() *renderer {
	r, err := parseTemplates(assets)
	if err != nil {
		panic(err)
	}
	return r
}

func parseTemplates(fsys fs.FS) (*renderer, error) {
	names, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		page := strings.TrimPrefix(name, "templates/")
		if page == "layout.html" {
			continue
		}
		tpl, err := template.New("layout.html").Funcs(funcs).ParseFS(fsys, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.pages[page] = tpl
	}
	return r, nil
}

// notice is a one-shot success or error message shown on a page.
type notice struct {
	Kind    string `json:"kind"` // "success" or "error"
	Message string `json:"message"`
}

// render executes page inside the layout. The layout reads .Principal,
// .Flash and .Version; page data goes in .Data. A pending flash cookie is
// consumed unless data already carries a notice.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data map[string]any, n *notice) {
	tpl, ok := s.pages.pages[page]
	if !ok {
		log.Error().Str("page", page).Msg("unknown template")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if n == nil {
		n = popFlash(w, r)
	}
	view := map[string]any{
		"Title":     title,
		"Principal": auth.FromContext(r.Context()),
		"Flash":     n,
		"Version":   s.version,
		"Data":      data,
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, view); err != nil {
		log.Error().Err(err).Str("page", page).Msg("render template")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}
