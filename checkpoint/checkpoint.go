// Package checkpoint decides whether a per-resource task already completed.
//
// The existence and non-zero size of a resource's designated output file is
// the sole durable state; there is no separate manifest. A missing or empty
// file makes the task eligible to run again, a present non-empty file skips
// it without re-validating contents. Partial artifacts of failed resources
// must therefore be deleted, or a later run would mistake them for completed
// work.
package checkpoint

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Store answers checkpoint queries for artifacts below a root directory.
type Store struct {
	root string
}

// NewStore creates a checkpoint store rooted at dir. The directory is
// created on demand.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Path resolves an artifact name below the store root.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Done reports whether the named artifact exists and is non-empty. A
// directory counts as done when it contains at least one entry.
func (s *Store) Done(name string) bool {
	path := s.Path(name)
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return false
		}
		for _, e := range entries {
			// macOS metadata droppings do not count as content.
			if e.Name() != ".DS_Store" {
				return true
			}
		}
		return false
	}
	return info.Size() > 0
}

// Clear removes the named artifacts, ignoring ones that do not exist.
// Used to purge partial files of resources that ended in an error state.
func (s *Store) Clear(names ...string) {
	for _, name := range names {
		path := s.Path(name)
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Failed to remove partial artifact", "path", path, "error", err)
		}
	}
}

// Filter returns the identifiers whose checkpoint artifact is not yet done,
// where nameOf maps an identifier to its artifact name. Order is preserved.
func (s *Store) Filter(ids []string, nameOf func(string) string) (pending, skipped []string) {
	for _, id := range ids {
		if s.Done(nameOf(id)) {
			skipped = append(skipped, id)
			continue
		}
		pending = append(pending, id)
	}
	return pending, skipped
}
