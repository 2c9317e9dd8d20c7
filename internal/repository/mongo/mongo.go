// Package mongo implements repository.MediaRepository on a MongoDB
// collection. Sessions and users stay in SQLite; only media documents,
// which are the bulk of the data, move here when CLOSET_STORE_DRIVER=mongo.
//
// A document is capped at 16 MiB by the server, and the packed pixels of a
// single phone photo can be twice that. Pixels up to inlinePixelLimit stay in
// the document; anything larger goes to a GridFS bucket and the document
// keeps the file id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yrajput/closet-organizer/internal/apperror"
	"github.com/yrajput/closet-organizer/internal/imaging"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/repository"
)

var _ repository.MediaRepository = (*Store)(nil)

// inlinePixelLimit is the largest packed pixel buffer kept inside the
// document. It leaves room under the 16 MiB document cap for the rest of the
// fields.
const inlinePixelLimit = 8 << 20

// mediaDoc is the stored form of a MediaRecord. _id is an xid, whose string
// form sorts by creation time, so sorting on _id gives insertion order.
// Exactly one of Pixels and PixelsFile is set.
type mediaDoc struct {
	ID           string    `bson:"_id"`
	Owner        string    `bson:"owner"`
	Categories   []string  `bson:"categories"`
	Width        int       `bson:"width"`
	Height       int       `bson:"height"`
	Pixels       []byte    `bson:"pixels,omitempty"`
	PixelsFile   string    `bson:"pixels_file,omitempty"`
	Path         string    `bson:"path"`
	OriginalName string    `bson:"original_name"`
	CreatedAt    time.Time `bson:"created_at"`
}

// pixelFiles holds pixel buffers too large for a document.
type pixelFiles interface {
	Upload(ctx context.Context, id string, data []byte) error
	Download(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// Store holds the client, the media collection and the pixel bucket.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	files  pixelFiles

	inlineLimit int
}

// Open connects, pings and makes sure the listing indexes exist. The GridFS
// bucket is named after the collection: "<collection>_pixels".
func Open(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	db := client.Database(database)
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(collection+"_pixels"))
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: opening pixel bucket: %w", err)
	}

	s := newStore(db.Collection(collection), gridFSFiles{bucket: bucket})
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func newStore(coll *mongo.Collection, files pixelFiles) *Store {
	return &Store{
		client:      coll.Database().Client(),
		coll:        coll,
		files:       files,
		inlineLimit: inlinePixelLimit,
	}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "categories", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: creating indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping reports whether the deployment is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Insert appends rec as a new document.
func (s *Store) Insert(ctx context.Context, rec *model.MediaRecord) error {
	if rec.ID == "" {
		rec.ID = xid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if field := rec.Validate(); field != "" {
		return apperror.ValidationFailed(field, fmt.Sprintf("media record has invalid %s", field))
	}

	doc := toDoc(rec)
	if len(doc.Pixels) > s.inlineLimit {
		if err := s.files.Upload(ctx, rec.ID, doc.Pixels); err != nil {
			return apperror.Unavailable("media", fmt.Errorf("storing pixels of media %s: %w", rec.ID, err))
		}
		doc.Pixels, doc.PixelsFile = nil, rec.ID
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if doc.PixelsFile != "" {
			_ = s.files.Delete(context.WithoutCancel(ctx), doc.PixelsFile)
		}
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("media", rec.ID)
		}
		return apperror.Unavailable("media", fmt.Errorf("inserting media %s: %w", rec.ID, err))
	}
	return nil
}

// List yields the owner's documents sorted by _id. Each range re-runs the
// query. Errors end the sequence.
func (s *Store) List(ctx context.Context, f repository.MediaFilter) iter.Seq2[*model.MediaRecord, error] {
	return func(yield func(*model.MediaRecord, error) bool) {
		cur, err := s.coll.Find(ctx, listFilter(f), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
		if err != nil {
			yield(nil, apperror.Unavailable("media", err))
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var doc mediaDoc
			if err := cur.Decode(&doc); err != nil {
				id, _ := cur.Current.Lookup("_id").StringValueOK()
				yield(nil, apperror.Corrupt("media", id, "document"))
				return
			}
			if err := s.loadPixels(ctx, &doc); err != nil {
				yield(nil, err)
				return
			}
			rec, err := fromDoc(doc)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, apperror.Unavailable("media", err))
		}
	}
}

// loadPixels fetches spilled pixels into doc.Pixels. A missing file is
// corruption; any other failure is the store being unavailable.
func (s *Store) loadPixels(ctx context.Context, doc *mediaDoc) error {
	if doc.PixelsFile == "" {
		return nil
	}
	data, err := s.files.Download(ctx, doc.PixelsFile)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return apperror.Corrupt("media", doc.ID, "pixels")
	}
	if err != nil {
		return apperror.Unavailable("media", fmt.Errorf("reading pixels of media %s: %w", doc.ID, err))
	}
	doc.Pixels = data
	return nil
}

func listFilter(f repository.MediaFilter) bson.D {
	filter := bson.D{{Key: "owner", Value: f.Owner}}
	if f.Category != "" {
		filter = append(filter, bson.E{Key: "categories", Value: string(f.Category)})
	}
	return filter
}

func toDoc(rec *model.MediaRecord) mediaDoc {
	cats := make([]string, 0, len(rec.Categories))
	for _, c := range rec.Categories {
		cats = append(cats, string(c))
	}
	return mediaDoc{
		ID:           rec.ID,
		Owner:        rec.Owner,
		Categories:   cats,
		Width:        rec.Raster.Width,
		Height:       rec.Raster.Height,
		Pixels:       imaging.PackPixels(rec.Raster.Pix),
		Path:         rec.Path,
		OriginalName: rec.OriginalName,
		CreatedAt:    rec.CreatedAt,
	}
}

// fromDoc rebuilds and validates a record. Anything that does not validate
// is apperror.ErrCorrupt naming the first bad field.
func fromDoc(doc mediaDoc) (*model.MediaRecord, error) {
	if doc.Width <= 0 || doc.Height <= 0 {
		return nil, apperror.Corrupt("media", doc.ID, "dimensions")
	}
	pix, err := imaging.UnpackPixels(doc.Pixels, 4*doc.Width*doc.Height)
	if err != nil {
		return nil, apperror.Corrupt("media", doc.ID, "pixels")
	}

	rec := &model.MediaRecord{
		ID:           doc.ID,
		Owner:        doc.Owner,
		Raster:       model.Raster{Width: doc.Width, Height: doc.Height, Pix: pix},
		Path:         doc.Path,
		OriginalName: doc.OriginalName,
		CreatedAt:    doc.CreatedAt,
	}
	for _, c := range doc.Categories {
		rec.Categories = append(rec.Categories, model.Category(c))
	}
	if field := rec.Validate(); field != "" {
		return nil, apperror.Corrupt("media", doc.ID, field)
	}
	return rec, nil
}
