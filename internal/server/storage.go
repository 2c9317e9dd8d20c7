package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yrajput/closet-organizer/internal/blob"
	"github.com/yrajput/closet-organizer/internal/config"
	"github.com/yrajput/closet-organizer/internal/handler"
	"github.com/yrajput/closet-organizer/internal/imaging"
	"github.com/yrajput/closet-organizer/internal/repository"
	mongoRepo "github.com/yrajput/closet-organizer/internal/repository/mongo"
	sqliteRepo "github.com/yrajput/closet-organizer/internal/repository/sqlite"
	"github.com/yrajput/closet-organizer/internal/service"
)

// Storage is every backing store the application talks to, opened from
// config.Storage. The server and the export command share it.
//
// SQLite always holds sessions and users. Media records live in SQLite or
// MongoDB, and materialized images go to local disk or an S3 bucket,
// depending on the configured drivers.
type Storage struct {
	DB     *sqliteRepo.DB
	Media  repository.MediaRepository
	Blobs  blob.Writer
	Local  *blob.Local // nil unless the local blob driver is selected
	Checks map[string]handler.HealthCheck

	mongo  *mongoRepo.Store
	logger *slog.Logger
}

// OpenStorage opens the stores cfg selects. On error everything opened so
// far is closed again.
func OpenStorage(ctx context.Context, cfg config.Storage, logger *slog.Logger) (*Storage, error) {
	s := &Storage{Checks: make(map[string]handler.HealthCheck), logger: logger}

	if err := s.openDB(cfg.Store); err != nil {
		return nil, err
	}
	if err := s.openMedia(ctx, cfg.Store); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openBlobs(ctx, cfg.Blob); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) openDB(cfg config.StoreConfig) error {
	if cfg.DBPath != ":memory:" {
		// os.MkdirAll creates the parent directories like `mkdir -p`.
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	s.DB = db
	s.Media = db
	s.Checks["sqlite"] = func(context.Context) error { return db.Ping() }
	return nil
}

func (s *Storage) openMedia(ctx context.Context, cfg config.StoreConfig) error {
	if cfg.Driver != config.DriverMongo {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	store, err := mongoRepo.Open(ctx, cfg.MongoConnURI(), cfg.MongoDatabase, cfg.MongoCollection)
	if err != nil {
		return fmt.Errorf("opening mongo media store: %w", err)
	}
	s.mongo = store
	s.Media = store
	s.Checks["mongo"] = store.Ping
	return nil
}

func (s *Storage) openBlobs(ctx context.Context, cfg config.BlobConfig) error {
	switch cfg.Driver {
	case config.BlobMinio:
		m, err := blob.NewMinio(blob.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
			URLExpiry: cfg.S3URLExpiry,
		})
		if err != nil {
			return err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return err
		}
		s.Blobs = m
		s.Checks["minio"] = m.Ping
	default:
		local, err := blob.NewLocal(cfg.MediaDir)
		if err != nil {
			return err
		}
		s.Blobs = local
		s.Local = local
	}
	return nil
}

// MediaService builds the media service over these stores.
func (s *Storage) MediaService(cfg config.UploadConfig) *service.MediaService {
	limits := imaging.Limits{MaxBytes: cfg.MaxBytes, MaxPixels: cfg.MaxPixels}
	return service.NewMediaService(s.Media, s.Blobs, limits, s.logger).
		WithDecodeGate(imaging.NewGate(cfg.MaxDecodes))
}

// Close releases every open store. It is safe to call more than once.
func (s *Storage) Close() error {
	var errs []error
	if s.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.mongo.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing mongo: %w", err))
		}
		s.mongo = nil
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
		s.DB = nil
	}
	return errors.Join(errs...)
}
