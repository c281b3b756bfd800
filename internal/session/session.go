// Package session manages the on-disk scratch workspace of a single
// create-post transaction.
//
// Every session owns exactly one directory under
// <cache-root>/create_sessions/<sessionId>/. The directory is the only
// place intermediate files (the rendered bitmap) live, so removing it
// removes every trace of an abandoned or finished attempt.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RootDirName is the directory under the cache root that holds all sessions.
const RootDirName = "create_sessions"

// idRegex matches the canonical textual UUID form produced by GenerateID.
var idRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ErrInvalidID is returned when a session id is not a safe path segment.
var ErrInvalidID = errors.New("invalid session id")

// Manager owns the sessions root. It holds no per-session state: the
// filesystem is the single source of truth.
type Manager struct {
	root string
}

// NewManager returns a Manager rooted at <cacheRoot>/create_sessions.
func NewManager(cacheRoot string) *Manager {
	return &Manager{root: filepath.Join(cacheRoot, RootDirName)}
}

// Root returns the sessions root directory.
func (m *Manager) Root() string {
	return m.root
}

// GenerateID returns a fresh session id. UUIDv7 is used so ids sort by
// creation time (48-bit millisecond prefix) and carry 74 random bits.
func (m *Manager) GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does.
		log.Warn().Err(err).Msg("UUIDv7 generation failed, falling back to v4")
		return uuid.NewString()
	}
	return id.String()
}

// ValidateID checks that id is safe to use as a single path segment.
func ValidateID(id string) error {
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Dir maps a session id to its workspace directory. It performs no I/O.
func (m *Manager) Dir(id string) string {
	return filepath.Join(m.root, id)
}

// Initialize creates the workspace directory. Calling it twice is fine.
func (m *Manager) Initialize(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	dir := m.Dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session workspace %s: %w", dir, err)
	}
	log.Debug().Str("sessionId", id).Str("dir", dir).Msg("Session workspace initialized")
	return nil
}

// Exists reports whether the session's workspace directory is present.
func (m *Manager) Exists(id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	info, err := os.Stat(m.Dir(id))
	return err == nil && info.IsDir()
}

// Cleanup removes the session's workspace. It never fails: a missing
// directory is already clean, and any other error is logged and dropped.
func (m *Manager) Cleanup(id string) {
	if err := ValidateID(id); err != nil {
		log.Warn().Err(err).Msg("Refusing to clean up session with invalid id")
		return
	}
	dir := m.Dir(id)
	if err := os.RemoveAll(dir); err != nil {
		log.Warn().Err(err).Str("sessionId", id).Str("dir", dir).Msg("Session cleanup failed (non-fatal)")
		return
	}
	log.Debug().Str("sessionId", id).Msg("Session workspace removed")
}

// ClearAll removes the entire sessions root. It is meant to run once at
// process start, before any session is created, to reclaim space left by
// crashed runs. It never fails.
func (m *Manager) ClearAll() {
	if err := os.RemoveAll(m.root); err != nil {
		log.Warn().Err(err).Str("root", m.root).Msg("Failed to clear session root (non-fatal)")
		return
	}
	log.Info().Str("root", m.root).Msg("Stale sessions cleared")
}

// ClearStale removes only workspaces whose modification time is older than
// maxAge and returns how many were removed. Use it instead of ClearAll when
// another session may be live in the same process. It never fails.
func (m *Manager) ClearStale(maxAge time.Duration) int {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("root", m.root).Msg("Failed to list session root (non-fatal)")
		}
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(m.root, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Failed to remove stale session (non-fatal)")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Dur("maxAge", maxAge).Msg("Stale sessions removed")
	}
	return removed
}
