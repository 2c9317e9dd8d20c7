package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"github.com/yrajput/closet-organizer/internal/apperror"
	"github.com/yrajput/closet-organizer/internal/blob"
	"github.com/yrajput/closet-organizer/internal/imaging"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/repository"
)

// Upload is a photograph as received from the uploader form.
type Upload struct {
	Filename string
	Data     []byte
}

// MediaService stores photographs and materializes them for display.
// Every call is scoped to an owner; nothing lists across owners.
type MediaService struct {
	repo   repository.MediaRepository
	blobs  blob.Writer
	limits imaging.Limits
	gate   *imaging.Gate
	logger *slog.Logger
}

// NewMediaService creates a MediaService.
func NewMediaService(repo repository.MediaRepository, blobs blob.Writer, limits imaging.Limits, logger *slog.Logger) *MediaService {
	return &MediaService{repo: repo, blobs: blobs, limits: limits, logger: logger}
}

// WithDecodeGate bounds concurrent decodes in Store by g.
func (s *MediaService) WithDecodeGate(g *imaging.Gate) *MediaService {
	s.gate = g
	return s
}

// ParseCategories normalizes raw form values. Blank entries are skipped,
// duplicates collapse, and any unknown name fails the whole set.
func ParseCategories(raw []string) ([]model.Category, error) {
	var out []model.Category
	seen := make(map[model.Category]bool)
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		c, ok := model.ParseCategory(r)
		if !ok {
			return nil, apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", strings.TrimSpace(r)))
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// Store validates and decodes an upload and appends one record for owner.
//
// Nothing is persisted unless every check passes: owner present, categories
// known, and the upload an allowed image within limits. Storing identical
// content twice creates two records.
func (s *MediaService) Store(ctx context.Context, owner string, categories []model.Category, up Upload) (*model.MediaRecord, error) {
	if owner == "" {
		return nil, apperror.Unauthorized("an owner is required to store media")
	}
	cats := make([]model.Category, 0, len(categories))
	for _, raw := range categories {
		c, ok := model.ParseCategory(string(raw))
		if !ok {
			return nil, apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", raw))
		}
		if !slices.Contains(cats, c) {
			cats = append(cats, c)
		}
	}

	raster, err := s.decode(ctx, up)
	if err != nil {
		return nil, err
	}

	rec := &model.MediaRecord{
		Owner:        owner,
		Categories:   cats,
		Raster:       raster,
		Path:         imaging.StorageKey(owner, up.Filename, raster),
		OriginalName: up.Filename,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("media stored",
		slog.String("id", rec.ID),
		slog.String("owner", owner),
		slog.Int("width", raster.Width),
		slog.Int("height", raster.Height),
		slog.Int("categories", len(cats)),
	)
	return rec, nil
}

// ListFor yields the location of every photograph owner has stored,
// optionally narrowed to category, in insertion order.
//
// Each record's raster is re-encoded as PNG and written to its storage key
// before its location is yielded. The sequence does no work until ranged
// over and re-queries on every range, so a second pass sees the same
// records plus anything stored since. Store failures are yielded as errors
// and end the sequence; they are never an empty listing.
func (s *MediaService) ListFor(ctx context.Context, owner string, category model.Category) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if owner == "" {
			yield("", apperror.Unauthorized("an owner is required to list media"))
			return
		}
		if category != "" {
			c, ok := model.ParseCategory(string(category))
			if !ok {
				yield("", apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", category)))
				return
			}
			category = c
		}

		for rec, err := range s.repo.List(ctx, repository.MediaFilter{Owner: owner, Category: category}) {
			if err != nil {
				s.logger.Error("listing media",
					slog.String("owner", owner),
					slog.String("error", err.Error()),
				)
				yield("", err)
				return
			}

			loc, err := s.materialize(ctx, rec)
			if err != nil {
				yield("", err)
				return
			}
			if !yield(loc, nil) {
				return
			}
		}
	}
}

func (s *MediaService) decode(ctx context.Context, up Upload) (model.Raster, error) {
	if s.gate != nil {
		release, err := s.gate.Acquire(ctx)
		if err != nil {
			return model.Raster{}, apperror.Unavailable("decoder", err)
		}
		defer release()
	}
	return imaging.Decode(up.Data, up.Filename, s.limits)
}

func (s *MediaService) materialize(ctx context.Context, rec *model.MediaRecord) (string, error) {
	data, err := imaging.EncodePNG(rec.Raster)
	if err != nil {
		return "", apperror.Corrupt("media", rec.ID, "pixels")
	}
	loc, err := s.blobs.Write(ctx, rec.Path, data)
	if err != nil {
		return "", apperror.Unavailable("blob", fmt.Errorf("writing %s: %w", rec.Path, err))
	}
	return loc, nil
}
