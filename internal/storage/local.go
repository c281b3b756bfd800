package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// LocalStore is an ObjectStore on the local filesystem. Writes are atomic
// (temp file then rename) and serialized by a mutex.
type LocalStore struct {
	basePath string
	baseURL  string
	mu       sync.Mutex
}

// NewLocalStore creates basePath if needed. URLs are file:// URLs unless
// baseURL is given.
func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		log.Error().Err(err).Str("path", abs).Msg("Failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	log.Debug().Str("path", abs).Msg("Local object storage initialized")
	return &LocalStore{basePath: abs, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put copies localFile to objectPath under the base directory.
func (ls *LocalStore) Put(ctx context.Context, objectPath, localFile string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}

	src, err := os.Open(localFile)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer src.Close()

	ls.mu.Lock()
	defer ls.mu.Unlock()

	fullPath := ls.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("failed to move file to final location: %w", err)
	}

	log.Info().Str("path", key).Int64("bytes", written).Msg("Object stored locally")
	return ls.URL(key), nil
}

// Delete removes objectPath and prunes now-empty parent directories.
func (ls *LocalStore) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := cleanPath(objectPath)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	fullPath := ls.fullPath(key)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	for dir := filepath.Dir(fullPath); dir != ls.basePath && strings.HasPrefix(dir, ls.basePath); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	log.Info().Str("path", key).Msg("Object deleted locally")
	return nil
}

// Exists reports whether objectPath is stored.
func (ls *LocalStore) Exists(objectPath string) bool {
	key, err := cleanPath(objectPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(ls.fullPath(key))
	return err == nil
}

// URL returns the URL of key.
func (ls *LocalStore) URL(key string) string {
	if ls.baseURL != "" {
		return ls.baseURL + "/" + key
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(ls.fullPath(key))}
	return u.String()
}

func (ls *LocalStore) fullPath(key string) string {
	return filepath.Join(ls.basePath, filepath.FromSlash(key))
}

var _ ObjectStore = (*LocalStore)(nil)
var _ ObjectStore = (*S3Store)(nil)
