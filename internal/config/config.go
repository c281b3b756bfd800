// Package config reads pipeline configuration from the environment.
// Every setting has a default so the CLI works with no environment at
// all (local storage, SQLite records, static identity).
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fpang/create-post-pipeline/internal/contract"
	"github.com/fpang/create-post-pipeline/internal/crop"
	"github.com/fpang/create-post-pipeline/internal/identity"
	"github.com/fpang/create-post-pipeline/internal/logging"
	"github.com/fpang/create-post-pipeline/internal/publish"
	"github.com/fpang/create-post-pipeline/internal/selection"
)

// Object storage backends.
const (
	ObjectsLocal = "local"
	ObjectsS3    = "s3"
)

// Document store backends.
const (
	DocumentsMemory = "memory"
	DocumentsSQL    = "sql"
	DocumentsDynamo = "dynamodb"
)

// Identity sources.
const (
	IdentityStatic = "static"
	IdentityJWT    = "jwt"
)

// DefaultSigningKeyParam is the SSM parameter holding the JWT signing key.
const DefaultSigningKeyParam = "/create-post/prod/jwt-signing-key"

// Config is the resolved configuration.
type Config struct {
	// CacheRoot holds session workspaces (<CacheRoot>/create_sessions).
	CacheRoot  string
	StaleAfter time.Duration

	ObjectBackend string
	StorageDir    string
	MediaBucket   string
	MediaBaseURL  string

	DocumentBackend string
	SQLDSN          string
	PostsTable      string

	IdentitySource  string
	AuthorID        string
	AuthorName      string
	AuthToken       string
	SigningKeyParam string

	// EventBus enables PostCreated notifications; "default" selects the
	// account's default bus.
	EventBus string

	Limits      selection.Limits
	Render      crop.RenderOptions
	DeviceWidth float64
	Ratio       contract.AspectRatio
	Timeouts    publish.Timeouts
}

// Load resolves the configuration from the environment.
func Load() (*Config, error) {
	home := defaultHome()

	cfg := &Config{
		CacheRoot:       logging.EnvOrDefault("CREATE_CACHE_ROOT", defaultCacheRoot()),
		ObjectBackend:   logging.EnvOrDefault("CREATE_OBJECT_BACKEND", ObjectsLocal),
		StorageDir:      logging.EnvOrDefault("CREATE_STORAGE_DIR", filepath.Join(home, "media")),
		MediaBucket:     os.Getenv("MEDIA_BUCKET_NAME"),
		MediaBaseURL:    os.Getenv("CREATE_MEDIA_BASE_URL"),
		DocumentBackend: logging.EnvOrDefault("CREATE_DOCUMENT_BACKEND", DocumentsSQL),
		SQLDSN:          logging.EnvOrDefault("CREATE_SQL_DSN", filepath.Join(home, "posts.db")),
		PostsTable:      os.Getenv("POSTS_TABLE_NAME"),
		IdentitySource:  logging.EnvOrDefault("CREATE_IDENTITY", IdentityStatic),
		AuthorID:        logging.EnvOrDefault("CREATE_AUTHOR_ID", defaultAuthor()),
		AuthorName:      os.Getenv("CREATE_AUTHOR_NAME"),
		AuthToken:       os.Getenv("CREATE_AUTH_TOKEN"),
		SigningKeyParam: logging.EnvOrDefault("SSM_SIGNING_KEY_PARAM", DefaultSigningKeyParam),
		EventBus:        os.Getenv("CREATE_EVENT_BUS"),
		Limits:          selection.DefaultLimits(),
		Timeouts:        publish.DefaultTimeouts(),
	}

	var err error
	if cfg.StaleAfter, err = durationEnv("CREATE_STALE_AFTER", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Limits.MinDimension, err = intEnv("CREATE_MIN_DIMENSION", cfg.Limits.MinDimension); err != nil {
		return nil, err
	}
	maxSize, err := intEnv("CREATE_MAX_FILE_SIZE", int(cfg.Limits.MaxFileSize))
	if err != nil {
		return nil, err
	}
	cfg.Limits.MaxFileSize = int64(maxSize)
	if cfg.Render.TargetWidth, err = intEnv("CREATE_TARGET_WIDTH", crop.DefaultTargetWidth); err != nil {
		return nil, err
	}
	if cfg.Render.Quality, err = intEnv("CREATE_JPEG_QUALITY", crop.DefaultQuality); err != nil {
		return nil, err
	}
	deviceWidth, err := intEnv("CREATE_DEVICE_WIDTH", int(crop.DefaultDeviceWidth))
	if err != nil {
		return nil, err
	}
	cfg.DeviceWidth = float64(deviceWidth)
	if cfg.Ratio, err = contract.ParseAspectRatio(logging.EnvOrDefault("CREATE_ASPECT_RATIO", string(contract.Ratio4x5))); err != nil {
		return nil, err
	}

	if cfg.Timeouts.Upload, err = durationEnv("CREATE_UPLOAD_TIMEOUT", cfg.Timeouts.Upload); err != nil {
		return nil, err
	}
	if cfg.Timeouts.Record, err = durationEnv("CREATE_RECORD_TIMEOUT", cfg.Timeouts.Record); err != nil {
		return nil, err
	}
	if cfg.Timeouts.Rollback, err = durationEnv("CREATE_ROLLBACK_TIMEOUT", cfg.Timeouts.Rollback); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend names and the settings each backend requires.
func (c *Config) Validate() error {
	switch c.ObjectBackend {
	case ObjectsLocal:
	case ObjectsS3:
		if c.MediaBucket == "" {
			return fmt.Errorf("object backend %q requires MEDIA_BUCKET_NAME", c.ObjectBackend)
		}
	default:
		return fmt.Errorf("unknown object backend %q (want %s or %s)", c.ObjectBackend, ObjectsLocal, ObjectsS3)
	}

	switch c.DocumentBackend {
	case DocumentsMemory, DocumentsSQL:
	case DocumentsDynamo:
		if c.PostsTable == "" {
			return fmt.Errorf("document backend %q requires POSTS_TABLE_NAME", c.DocumentBackend)
		}
	default:
		return fmt.Errorf("unknown document backend %q (want %s, %s or %s)", c.DocumentBackend, DocumentsMemory, DocumentsSQL, DocumentsDynamo)
	}

	switch c.IdentitySource {
	case IdentityStatic, IdentityJWT:
	default:
		return fmt.Errorf("unknown identity source %q (want %s or %s)", c.IdentitySource, IdentityStatic, IdentityJWT)
	}

	if c.Limits.MinDimension < 1 || c.Limits.MaxFileSize < 1 {
		return fmt.Errorf("invalid limits: min dimension %d, max file size %d", c.Limits.MinDimension, c.Limits.MaxFileSize)
	}
	return nil
}

// NeedsAWS reports whether any configured backend talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.ObjectBackend == ObjectsS3 ||
		c.DocumentBackend == DocumentsDynamo ||
		c.EventBus != "" ||
		(c.IdentitySource == IdentityJWT && os.Getenv("CREATE_JWT_SECRET") == "")
}

// BackendLabel is the metrics label for the storage pair, e.g. "s3+dynamodb".
func (c *Config) BackendLabel() string {
	return c.ObjectBackend + "+" + c.DocumentBackend
}

var currentUser = user.Current

// defaultAuthor is the OS account name when it is a valid user id.
func defaultAuthor() string {
	u, err := currentUser()
	if err != nil || identity.ValidateUserID(u.Username) != nil {
		return ""
	}
	return u.Username
}

func defaultHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".create-post")
	}
	return filepath.Join(os.TempDir(), "create-post")
}

func defaultCacheRoot() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "create-post")
	}
	return filepath.Join(os.TempDir(), "create-post-cache")
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
