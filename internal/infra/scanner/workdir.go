// Package scanner invokes the underlying scan tools. It produces the
// raw unified JSON document consumed by the report normalizer and never
// interprets findings itself.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vibescan/api/pkg/logger"
)

const workDirPrefix = "vibescan-"

// NewWorkDir creates a fresh scan working directory under root. The
// directory name carries the vibescan- prefix so report paths can be
// stripped back to project-relative form.
func NewWorkDir(root string) (string, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir, err := os.MkdirTemp(root, workDirPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create scan workdir: %w", err)
	}
	return dir, nil
}

// RemoveWorkDir deletes a scan working directory and everything in it.
func RemoveWorkDir(dir string) error {
	base := filepath.Base(dir)
	if !strings.HasPrefix(base, workDirPrefix) {
		return fmt.Errorf("refusing to remove non-workdir path %q", dir)
	}
	return os.RemoveAll(dir)
}

// Sweeper removes leftover scan workdirs. Workdirs are normally removed
// at the end of each scan; the sweeper catches crashes and kills.
type Sweeper struct {
	root   string
	maxAge time.Duration
	log    *logger.Logger
}

// NewSweeper creates a Sweeper over root.
func NewSweeper(root string, maxAge time.Duration, log *logger.Logger) *Sweeper {
	if root == "" {
		root = os.TempDir()
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	return &Sweeper{root: root, maxAge: maxAge, log: log.With("component", "workdir_sweeper")}
}

// Sweep removes all vibescan workdirs older than the configured age.
func (s *Sweeper) Sweep() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.log.WithError(err).Warn("failed to read workdir root")
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), workDirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, entry.Name())); err != nil {
			s.log.WithError(err).Warn("failed to remove stale workdir", "dir", entry.Name())
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Info("swept stale scan workdirs", "removed", removed)
	}
}
