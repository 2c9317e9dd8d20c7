package handler

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yrajput/closet-organizer/internal/auth"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/service"
)

// Gallery is one of the fixed gallery pages.
type Gallery struct {
	Path     string
	Label    string
	Title    string
	Category model.Category // "" shows every photo
	Profile  bool           // also dump the session's GitHub profile
}

// Galleries are the gallery pages in navigation order. page1 shows
// everything; page2..page6 follow model.Categories.
var Galleries = []Gallery{
	{Path: "/page1", Label: "All", Title: "All photos", Profile: true},
	{Path: "/page2", Label: "Seasons", Title: "Seasons", Category: model.CategorySeasons},
	{Path: "/page3", Label: "Parties", Title: "Parties", Category: model.CategoryParties},
	{Path: "/page4", Label: "Beach", Title: "Beach", Category: model.CategoryBeach},
	{Path: "/page5", Label: "Outdoors", Title: "Outdoors", Category: model.CategoryOutdoors},
	{Path: "/page6", Label: "Work", Title: "Work", Category: model.CategoryWork},
}

// MediaService is the part of *service.MediaService the pages use.
type MediaService interface {
	Store(ctx context.Context, owner string, categories []model.Category, up service.Upload) (*model.MediaRecord, error)
	ListFor(ctx context.Context, owner string, category model.Category) iter.Seq2[string, error]
}

// PageHandler serves the landing page and the galleries.
type PageHandler struct {
	render *Renderer
	media  MediaService
	logger *slog.Logger
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(render *Renderer, media MediaService, logger *slog.Logger) *PageHandler {
	return &PageHandler{render: render, media: media, logger: logger}
}

// Home serves the landing page. It is public and shows pending notices.
//
// HTTP: GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render.render(w, r, http.StatusOK, pageHome, &pageData{Title: "Home"})
}

// Gallery serves one gallery page. Callers must be logged in; the route is
// mounted behind auth.RequireLogin.
//
// A ?category= query narrows the listing and overrides the page's own
// category. A store failure renders the page with an error and a 5xx status,
// never as an empty gallery.
//
// HTTP: GET /page1 … /page6
func (h *PageHandler) Gallery(g Gallery) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := auth.SessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		data := &pageData{
			Title:      g.Title,
			Category:   g.Category,
			Categories: model.Categories,
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			c, ok := model.ParseCategory(raw)
			if !ok {
				data.Error = "Unknown category " + raw + "."
				h.render.render(w, r, http.StatusBadRequest, pageGallery, data)
				return
			}
			data.Category = c
		}

		if g.Profile {
			data.ProfileDump = dumpProfile(sess.Identity)
		}

		status := http.StatusOK
		for loc, err := range h.media.ListFor(r.Context(), sess.Identity.Login, data.Category) {
			if err != nil {
				h.logger.Error("listing gallery",
					slog.String("page", g.Path),
					slog.String("owner", sess.Identity.Login),
					slog.String("error", err.Error()),
				)
				status = statusFor(err)
				data.Error = userMessage(err)
				data.Photos = nil
				break
			}
			data.Photos = append(data.Photos, loc)
		}

		h.render.render(w, r, status, pageGallery, data)
	}
}

// dumpProfile pretty-prints the GitHub profile held in the session.
func dumpProfile(id model.Identity) string {
	profile := id.Profile
	if profile == nil {
		profile = map[string]any{"login": id.Login}
	}
	b, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return id.Login
	}
	return string(b)
}
