package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/yrajput/closet-organizer/internal/apperror"
	"github.com/yrajput/closet-organizer/internal/imaging"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/repository"
)

var _ repository.MediaRepository = (*DB)(nil)

// Insert appends a media record and its category tags in one transaction.
// ID and CreatedAt are filled in when empty.
func (db *DB) Insert(ctx context.Context, rec *model.MediaRecord) error {
	if rec.ID == "" {
		rec.ID = xid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if field := rec.Validate(); field != "" {
		return apperror.ValidationFailed(field, fmt.Sprintf("media record has invalid %s", field))
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.Unavailable("media", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO media (id, owner, width, height, pixels, path, original_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Owner,
		rec.Raster.Width,
		rec.Raster.Height,
		imaging.PackPixels(rec.Raster.Pix),
		rec.Path,
		rec.OriginalName,
		rec.CreatedAt,
	)
	if err != nil {
		return apperror.Unavailable("media", fmt.Errorf("inserting media %s: %w", rec.ID, err))
	}

	for _, c := range rec.Categories {
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO media_categories (media_id, category) VALUES (?, ?)`,
			rec.ID, string(c),
		)
		if err != nil {
			return apperror.Unavailable("media", fmt.Errorf("tagging media %s: %w", rec.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return apperror.Unavailable("media", fmt.Errorf("committing media %s: %w", rec.ID, err))
	}
	return nil
}

const listMediaQuery = `
	SELECT m.id, m.owner, m.width, m.height, m.pixels, m.path, m.original_name, m.created_at,
	       COALESCE((SELECT group_concat(c.category, ',') FROM media_categories c WHERE c.media_id = m.id), '')
	FROM media m
	WHERE m.owner = ?
	  AND (? = '' OR EXISTS (
	        SELECT 1 FROM media_categories c WHERE c.media_id = m.id AND c.category = ?))
	ORDER BY m.seq`

// List yields the owner's records in insertion order, optionally narrowed
// to one category.
//
// The query runs when the sequence is ranged over, and again on every new
// range. A query failure yields apperror.ErrUnavailable; a row that fails
// validation yields apperror.ErrCorrupt. Either ends the sequence.
func (db *DB) List(ctx context.Context, f repository.MediaFilter) iter.Seq2[*model.MediaRecord, error] {
	return func(yield func(*model.MediaRecord, error) bool) {
		rows, err := db.conn.QueryContext(ctx, listMediaQuery, f.Owner, string(f.Category), string(f.Category))
		if err != nil {
			yield(nil, apperror.Unavailable("media", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanMedia(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, apperror.Unavailable("media", err))
		}
	}
}

func scanMedia(rows *sql.Rows) (*model.MediaRecord, error) {
	var (
		rec    model.MediaRecord
		packed []byte
		tags   string
	)
	err := rows.Scan(
		&rec.ID,
		&rec.Owner,
		&rec.Raster.Width,
		&rec.Raster.Height,
		&packed,
		&rec.Path,
		&rec.OriginalName,
		&rec.CreatedAt,
		&tags,
	)
	if err != nil {
		return nil, apperror.Unavailable("media", fmt.Errorf("scanning media row: %w", err))
	}

	if rec.Raster.Width <= 0 || rec.Raster.Height <= 0 {
		return nil, apperror.Corrupt("media", rec.ID, "dimensions")
	}
	pix, err := imaging.UnpackPixels(packed, 4*rec.Raster.Width*rec.Raster.Height)
	if err != nil {
		return nil, apperror.Corrupt("media", rec.ID, "pixels")
	}
	rec.Raster.Pix = pix
	rec.Categories = parseCategories(tags)

	if field := rec.Validate(); field != "" {
		return nil, apperror.Corrupt("media", rec.ID, field)
	}
	return &rec, nil
}

// parseCategories keeps unknown tags so Validate can flag them, and sorts
// known ones into display order.
func parseCategories(csv string) []model.Category {
	if csv == "" {
		return nil
	}
	var out []model.Category
	for _, s := range strings.Split(csv, ",") {
		out = append(out, model.Category(s))
	}
	slices.SortFunc(out, func(a, b model.Category) int {
		return categoryRank(a) - categoryRank(b)
	})
	return out
}

func categoryRank(c model.Category) int {
	if i := slices.Index(model.Categories, c); i >= 0 {
		return i
	}
	return len(model.Categories)
}
