package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yrajput/closet-organizer/internal/apperror"
	"github.com/yrajput/closet-organizer/internal/auth"
	"github.com/yrajput/closet-organizer/internal/flash"
	"github.com/yrajput/closet-organizer/internal/imaging"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/service"
)

// formOverhead is what the multipart envelope and category fields may add
// on top of the photo itself.
const formOverhead = 1 << 20

// UploaderHandler serves the upload form and accepts submissions.
type UploaderHandler struct {
	render   *Renderer
	media    MediaService
	maxBytes int64
	logger   *slog.Logger
}

// NewUploaderHandler creates an UploaderHandler. maxBytes caps the photo.
func NewUploaderHandler(render *Renderer, media MediaService, maxBytes int64, logger *slog.Logger) *UploaderHandler {
	if maxBytes <= 0 {
		maxBytes = imaging.DefaultLimits.MaxBytes
	}
	return &UploaderHandler{render: render, media: media, maxBytes: maxBytes, logger: logger}
}

// Form renders the upload form.
//
// HTTP: GET /uploader
func (h *UploaderHandler) Form(w http.ResponseWriter, r *http.Request) {
	h.render.render(w, r, http.StatusOK, pageUploader, &pageData{
		Title:      "Upload",
		Categories: model.Categories,
		Accept:     strings.Join(imaging.AllowedExtensions(), ","),
		MaxMiB:     h.maxBytes >> 20,
	})
}

// Submit stores one photo for the logged-in user and redirects back to the
// form with a notice (post/redirect/get).
//
// HTTP: POST /uploader (multipart: photo, category...)
func (h *UploaderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		flash.Write(w, flash.Error(auth.LoginRequiredMessage))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	owner := sess.Identity.Login

	up, categories, err := h.readForm(w, r)
	if err == nil {
		_, err = h.media.Store(r.Context(), owner, categories, up)
	}
	if err != nil {
		h.logger.Warn("upload rejected",
			slog.String("owner", owner),
			slog.String("filename", up.Filename),
			slog.String("error", err.Error()),
		)
		flash.Write(w, flash.Error("Upload failed: "+userMessage(err)))
		http.Redirect(w, r, "/uploader", http.StatusSeeOther)
		return
	}

	flash.Write(w, flash.Success(fmt.Sprintf("Uploaded %s", displayName(up.Filename))))
	http.Redirect(w, r, "/uploader", http.StatusSeeOther)
}

// readForm pulls the photo and the category checkboxes out of the
// multipart body. The body is capped so an oversize upload fails while it
// is being read, not after it has been buffered.
func (h *UploaderHandler) readForm(w http.ResponseWriter, r *http.Request) (service.Upload, []model.Category, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return service.Upload{}, nil, apperror.ValidationFailed("photo",
				fmt.Sprintf("the photo is larger than %d MiB", h.maxBytes>>20))
		}
		return service.Upload{}, nil, apperror.ValidationFailed("photo", "the upload form could not be read")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	categories, err := service.ParseCategories(r.MultipartForm.Value["category"])
	if err != nil {
		return service.Upload{}, nil, err
	}

	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		// Store reports the missing photo.
		return service.Upload{}, categories, nil
	}
	if err != nil {
		return service.Upload{}, nil, apperror.ValidationFailed("photo", "the photo could not be read")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		return service.Upload{}, nil, apperror.ValidationFailed("photo", "the photo could not be read")
	}
	return service.Upload{Filename: header.Filename, Data: data}, categories, nil
}

func displayName(name string) string {
	if name == "" {
		return "photo"
	}
	return name
}
