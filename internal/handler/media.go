package handler

import (
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"

	"github.com/yrajput/closet-organizer/internal/auth"
	"github.com/yrajput/closet-organizer/internal/blob"
	"github.com/yrajput/closet-organizer/internal/imaging"
)

// FileOpener reads materialized files. *blob.Local implements it.
type FileOpener interface {
	Open(key string) (afero.File, error)
}

// MediaHandler serves files written by the local blob store.
type MediaHandler struct {
	files  FileOpener
	logger *slog.Logger
}

// NewMediaHandler creates a MediaHandler.
func NewMediaHandler(files FileOpener, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{files: files, logger: logger}
}

// Serve streams one file. Keys start with the owner's segment, and a caller
// only ever sees keys under their own; anything else is a 404 so the
// existence of other owners' files is not revealed.
//
// HTTP: GET /media/{owner}/{file}
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.NotFound(w, r)
		return
	}

	key, err := blob.CleanKey(chi.URLParam(r, "*"))
	if err != nil || !strings.HasPrefix(key, imaging.OwnerSegment(sess.Identity.Login)+"/") {
		http.NotFound(w, r)
		return
	}

	f, err := h.files.Open(key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, path.Base(key), info.ModTime(), f)
}
