// Package cache provides a content-addressed on-disk store for extracted
// page text. Entries are keyed by canonical URL and survive across runs;
// a missing or unreadable file is simply a miss.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Store is a flat directory of files named by the SHA-256 digest of the
// key. Writes go to a temp file and are renamed into place, so readers
// never observe partial content. A disabled store turns both operations
// into no-ops.
type Store struct {
	dir     string
	enabled bool
	logger  *zap.Logger
}

// NewStore creates the cache directory when enabled and returns the
// store. Construction fails only if the directory cannot be created.
func NewStore(dir string, enabled bool, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{dir: dir, enabled: enabled, logger: logger.Named("cache")}
	if !enabled {
		return s, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return s, nil
}

// Enabled reports whether the store persists anything.
func (s *Store) Enabled() bool {
	return s.enabled
}

// Get returns the cached content for key, or ok=false on a miss. Read
// errors are logged and treated as misses.
func (s *Store) Get(key string) ([]byte, bool) {
	if !s.enabled {
		return nil, false
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	s.logger.Debug("cache hit", zap.String("key", key))
	return data, true
}

// Put stores content under key. Concurrent writers to the same key are
// allowed; the last rename wins. Write errors are logged and dropped.
func (s *Store) Put(key string, data []byte) {
	if !s.enabled {
		return
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return
	}

	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return
	}

	s.logger.Debug("cached content", zap.String("key", key), zap.Int("bytes", len(data)))
}

// path maps a key to its file: hex(sha256(key)).txt inside the cache dir.
func (s *Store) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".txt")
}
