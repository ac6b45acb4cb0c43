// Package janitor prepares the output directory for a new session.
package janitor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

// Janitor clears stale segments and manifests left by a previous session
type Janitor struct {
	logger hclog.Logger
}

// New creates a Janitor
func New(logger hclog.Logger) *Janitor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Janitor{logger: logger.Named("janitor")}
}

// Clean removes every entry under dir and then recreates dir.
//
// Entries that cannot be removed are logged and counted in warnings; they
// never abort the sweep. The only error returned is a failure to recreate
// the directory itself. A missing dir is fine.
func (j *Janitor) Clean(dir string) (warnings int, err error) {
	entries, readErr := os.ReadDir(dir)
	switch {
	case readErr == nil:
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if rmErr := os.RemoveAll(path); rmErr != nil {
				warnings++
				j.logger.Warn("failed to remove output entry", "path", path, "error", rmErr)
			}
		}
	case os.IsNotExist(readErr):
	default:
		warnings++
		j.logger.Warn("failed to list output directory", "dir", dir, "error", readErr)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return warnings, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	j.logger.Debug("output directory cleaned", "dir", dir, "warnings", warnings)
	return warnings, nil
}
