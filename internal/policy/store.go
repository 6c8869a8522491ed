// internal/policy/store.go
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/common/metrics"
)

// Store loads policy documents from a directory and serves the combined
// text to the compliance oracle. Reloads swap the snapshot atomically, so
// an evaluation in flight always sees a complete document set.
type Store struct {
	dir    string
	logger logger.Logger

	mu       sync.RWMutex
	content  string
	count    int
	loadedAt time.Time
}

// NewStore creates a policy store for the given directory. Call Load
// before serving traffic.
func NewStore(dir string, log logger.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: log.WithFields(map[string]interface{}{"component": "policy-store"}),
	}
}

// Load reads every .md and .txt file in the directory, in name order, and
// replaces the current snapshot. The previous snapshot stays in place when
// Load fails.
func (s *Store) Load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		metrics.PolicyReloads.WithLabelValues("failure").Inc()
		return errors.NewPolicyLoadFailedError(err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isPolicyFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	// Name order keeps the combined text stable across reloads, so the
	// oracle prompt does not change unless a document does.
	sort.Strings(names)

	if len(names) == 0 {
		s.logger.Warn("No policy documents found", map[string]interface{}{
			"directory": s.dir,
		})
	}

	sections := make([]string, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			metrics.PolicyReloads.WithLabelValues("failure").Inc()
			return errors.NewPolicyLoadFailedError(err)
		}
		sections = append(sections, fmt.Sprintf("=== Document: %s ===\n\n%s", name, strings.TrimSpace(string(data))))
	}
	combined := strings.Join(sections, "\n\n")

	s.mu.Lock()
	s.content = combined
	s.count = len(names)
	s.loadedAt = time.Now()
	s.mu.Unlock()

	metrics.PolicyReloads.WithLabelValues("success").Inc()
	s.logger.Info("Policy documents loaded", map[string]interface{}{
		"directory": s.dir,
		"documents": len(names),
		"bytes":     len(combined),
	})
	return nil
}

// Content returns the current combined policy text.
func (s *Store) Content() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

// DocumentCount returns how many documents the last successful Load found.
func (s *Store) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Loaded reports whether at least one policy document is available.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content != ""
}

// LoadedAt returns when the last successful Load completed.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func isPolicyFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".txt":
		return true
	}
	return false
}
