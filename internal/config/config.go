// Package config loads process settings from the environment.
//
// Every required setting is checked at startup; a missing or invalid value
// stops the process with an error naming the variable instead of letting the
// server start in a broken state.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	BlobLocal = "local"
	BlobMinio = "minio"
)

// Config is the full server configuration.
type Config struct {
	Port     int    `env:"PORT"              envDefault:"5001"`
	BaseURL  string `env:"CLOSET_BASE_URL"   envDefault:"http://localhost:5001"`
	LogLevel string `env:"CLOSET_LOG_LEVEL"  envDefault:"info"`

	GitHub  GitHubConfig
	Session SessionConfig
	Storage
}

// GitHubConfig holds the OAuth application credentials and the organization
// whose members may log in.
type GitHubConfig struct {
	ClientID     string        `env:"GITHUB_CLIENT_ID,required,notEmpty"`
	ClientSecret string        `env:"GITHUB_CLIENT_SECRET,required,notEmpty"`
	Org          string        `env:"GITHUB_ORG,required,notEmpty"`
	AuthURL      string        `env:"GITHUB_AUTH_URL"  envDefault:"https://github.com/login/oauth/authorize"`
	TokenURL     string        `env:"GITHUB_TOKEN_URL" envDefault:"https://github.com/login/oauth/access_token"`
	APIURL       string        `env:"GITHUB_API_URL"   envDefault:"https://api.github.com/"`
	Timeout      time.Duration `env:"CLOSET_PROVIDER_TIMEOUT" envDefault:"10s"`
}

// SessionConfig controls the session cookie.
type SessionConfig struct {
	Secret        string        `env:"APP_SECRET_KEY,required,notEmpty"`
	TTL           time.Duration `env:"CLOSET_SESSION_TTL"     envDefault:"12h"`
	SecureCookies bool          `env:"CLOSET_SECURE_COOKIES"  envDefault:"false"`
}

// Storage groups the settings needed to reach media records and files. The
// export command loads only this part.
type Storage struct {
	Store  StoreConfig
	Blob   BlobConfig
	Upload UploadConfig
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Driver          string `env:"CLOSET_STORE_DRIVER" envDefault:"sqlite"`
	DBPath          string `env:"CLOSET_DB_PATH"      envDefault:"data/closet.db"`
	MongoURI        string `env:"MONGO_URI"`
	MongoHost       string `env:"MONGO_HOST"`
	MongoPort       int    `env:"MONGO_PORT"          envDefault:"27017"`
	MongoUsername   string `env:"MONGO_USERNAME"`
	MongoPassword   string `env:"MONGO_PASSWORD"`
	MongoDatabase   string `env:"MONGO_DBNAME"        envDefault:"closet"`
	MongoCollection string `env:"MONGO_COLLECTION"    envDefault:"hangers"`
}

// BlobConfig selects where reconstituted images are written.
type BlobConfig struct {
	Driver      string        `env:"CLOSET_BLOB_DRIVER" envDefault:"local"`
	MediaDir    string        `env:"CLOSET_MEDIA_DIR"   envDefault:"data/media"`
	S3Endpoint  string        `env:"S3_ENDPOINT"`
	S3AccessKey string        `env:"S3_ACCESS_KEY"`
	S3SecretKey string        `env:"S3_SECRET_KEY"`
	S3Bucket    string        `env:"S3_BUCKET"          envDefault:"closet"`
	S3UseSSL    bool          `env:"S3_USE_SSL"         envDefault:"true"`
	S3URLExpiry time.Duration `env:"S3_URL_EXPIRY"      envDefault:"1h"`
}

// UploadConfig bounds what an upload may contain and how many are decoded
// at once.
type UploadConfig struct {
	MaxBytes   int64 `env:"CLOSET_MAX_UPLOAD_BYTES"  envDefault:"10485760"`
	MaxPixels  int   `env:"CLOSET_MAX_UPLOAD_PIXELS" envDefault:"24000000"`
	MaxDecodes int   `env:"CLOSET_MAX_DECODES"       envDefault:"4"`
}

// Load parses and validates the full configuration.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// LoadStorage parses only the storage settings.
func LoadStorage() (Storage, error) {
	var s Storage
	if err := env.Parse(&s); err != nil {
		return Storage{}, fmt.Errorf("config: %w", err)
	}
	if err := s.validate(); err != nil {
		return Storage{}, fmt.Errorf("config: %w", err)
	}
	return s, nil
}

// CallbackURL is the OAuth redirect target registered with GitHub.
func (c Config) CallbackURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/login/authorized"
}

// SlogLevel maps LogLevel onto slog; unknown values fall back to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (c Config) validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is invalid", c.Port))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("CLOSET_BASE_URL %q must be an absolute URL", c.BaseURL))
	}
	if len(c.Session.Secret) < 16 {
		errs = append(errs, errors.New("APP_SECRET_KEY must be at least 16 characters"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("CLOSET_SESSION_TTL must be positive"))
	}
	if c.GitHub.Timeout <= 0 {
		errs = append(errs, errors.New("CLOSET_PROVIDER_TIMEOUT must be positive"))
	}
	if err := c.Storage.validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s Storage) validate() error {
	var errs []error
	switch s.Store.Driver {
	case DriverSQLite:
		if strings.TrimSpace(s.Store.DBPath) == "" {
			errs = append(errs, errors.New("CLOSET_DB_PATH is required for the sqlite store"))
		}
	case DriverMongo:
		if s.Store.MongoURI == "" && s.Store.MongoHost == "" {
			errs = append(errs, errors.New("MONGO_URI or MONGO_HOST is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("CLOSET_STORE_DRIVER %q is not one of sqlite, mongo", s.Store.Driver))
	}

	switch s.Blob.Driver {
	case BlobLocal:
		if strings.TrimSpace(s.Blob.MediaDir) == "" {
			errs = append(errs, errors.New("CLOSET_MEDIA_DIR is required for the local blob store"))
		}
	case BlobMinio:
		if s.Blob.S3Endpoint == "" || s.Blob.S3AccessKey == "" || s.Blob.S3SecretKey == "" {
			errs = append(errs, errors.New("S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY are required for the minio blob store"))
		}
	default:
		errs = append(errs, fmt.Errorf("CLOSET_BLOB_DRIVER %q is not one of local, minio", s.Blob.Driver))
	}

	if s.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("CLOSET_MAX_UPLOAD_BYTES must be positive"))
	}
	if s.Upload.MaxPixels <= 0 {
		errs = append(errs, errors.New("CLOSET_MAX_UPLOAD_PIXELS must be positive"))
	}
	if s.Upload.MaxDecodes <= 0 {
		errs = append(errs, errors.New("CLOSET_MAX_DECODES must be positive"))
	}
	return errors.Join(errs...)
}

// MongoConnURI returns MongoURI, or builds one from the host settings.
func (s StoreConfig) MongoConnURI() string {
	if s.MongoURI != "" {
		return s.MongoURI
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(s.MongoHost, strconv.Itoa(s.MongoPort)),
		Path:   "/" + s.MongoDatabase,
	}
	if s.MongoUsername != "" {
		u.User = url.UserPassword(s.MongoUsername, s.MongoPassword)
	}
	return u.String()
}
