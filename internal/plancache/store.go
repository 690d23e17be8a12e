// Package plancache persists plan.Order results to disk so a
// repeated plan call for the same (targets, platform, arch, options)
// key survives process restarts, not just the in-memory cache the
// Planner already keeps. Writes take a flock-based exclusive lock and
// go through a temp-file-then-rename so a crashed writer never leaves
// a torn entry.
package plancache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/sibilleb/hatstart/internal/plan"
)

// Store persists InstallationOrders under a directory, one JSON file
// per cache key. Locking is per-key via a sibling .lock file, so
// concurrent plans for different keys never contend.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating plan cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) entryPath(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".json")
}

func (s *Store) lockPath(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".lock")
}

// sanitizeKey turns an arbitrary cache key into a safe file name
// component without needing a full hash — keys here are already
// bounded, human-legible strings produced by plan.cacheKey's shape.
func sanitizeKey(key string) string {
	out := make([]byte, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, byte(r))
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "default"
	}
	return string(out)
}

// Load reads a cached Order for key, if present. A missing entry is
// not an error: (nil, false, nil) is returned.
func (s *Store) Load(key string) (*plan.Order, bool, error) {
	data, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading plan cache entry: %w", err)
	}

	var order plan.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, false, fmt.Errorf("parsing plan cache entry: %w", err)
	}
	return &order, true, nil
}

// Store persists order under key, guarded by an exclusive file lock
// and written via a temp-file-then-rename for atomicity.
func (s *Store) Store(key string, order *plan.Order) error {
	lock := flock.New(s.lockPath(key))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring plan cache lock: %w", err)
	}
	if !locked {
		return errors.New("plan cache entry is locked by another process")
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plan cache entry: %w", err)
	}

	path := s.entryPath(key)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing plan cache temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming plan cache entry: %w", err)
	}
	return nil
}

// Invalidate removes a cached entry, if present.
func (s *Store) Invalidate(key string) error {
	err := os.Remove(s.entryPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing plan cache entry: %w", err)
	}
	return nil
}
