// Package handler contains the HTTP request handlers for the closet.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (query, form, cookies)
//  2. Call the service layer
//  3. Write the response: a rendered page, a redirect with a flash notice,
//     or a file
//
// Handlers hold no business rules. Login gating lives in auth.RequireLogin,
// ownership and validation in the services.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/yrajput/closet-organizer/internal/auth"
	"github.com/yrajput/closet-organizer/internal/flash"
	"github.com/yrajput/closet-organizer/internal/model"
)

// Page names, one per content template.
const (
	pageHome     = "home"
	pageGallery  = "gallery"
	pageUploader = "uploader"
)

// Renderer executes the page templates.
//
// Each page is parsed together with base.html into its own template set, so
// every page can define "content" without clashing. Parsing happens once at
// startup.
type Renderer struct {
	pages  map[string]*template.Template
	org    string
	logger *slog.Logger
}

// NewRenderer parses templates/base.html plus one templates/<page>.html per
// page from fsys. org is shown on every page.
func NewRenderer(fsys fs.FS, org string, logger *slog.Logger) (*Renderer, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{pageHome, pageGallery, pageUploader} {
		t, err := template.ParseFS(fsys, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, org: org, logger: logger}, nil
}

// pageData is the template context. The first block is filled for every
// page; the rest only by the pages that use it.
type pageData struct {
	Title     string
	Path      string
	LoggedIn  bool
	Login     string
	GitHubOrg string
	Notices   []flash.Notice
	Pages     []Gallery

	Category    model.Category
	Categories  []model.Category
	Photos      []string
	Error       string
	ProfileDump string

	Accept string
	MaxMiB int64
}

// render fills the shared fields, consumes pending flash notices and writes
// the page with status.
//
// The page is executed into a buffer first: a template error then becomes a
// clean 500 instead of a half-written page.
func (rn *Renderer) render(w http.ResponseWriter, r *http.Request, status int, name string, data *pageData) {
	t, ok := rn.pages[name]
	if !ok {
		rn.logger.Error("unknown page template", slog.String("page", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data.Path = r.URL.Path
	data.GitHubOrg = rn.org
	data.Pages = Galleries
	if s, ok := auth.SessionFromContext(r.Context()); ok {
		data.LoggedIn = true
		data.Login = s.Identity.Login
	}
	data.Notices = flash.ReadAndClear(w, r)

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		rn.logger.Error("failed to render template",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
