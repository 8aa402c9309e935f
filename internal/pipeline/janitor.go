package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Janitor sweeps the scratch directory for preprocessed artifacts left
// behind by runs that never observed a caller-side cancellation. Normal runs
// remove their own artifact; the janitor is the backstop.
type Janitor struct {
	dir    string
	maxAge time.Duration
}

// NewJanitor creates a Janitor removing scratch files older than maxAge.
func NewJanitor(dir string, maxAge time.Duration) *Janitor {
	return &Janitor{dir: dir, maxAge: maxAge}
}

// Sweep removes stale artifacts and returns how many were reclaimed.
func (j *Janitor) Sweep() int {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		slog.Warn("Failed to read scratch directory", "dir", j.dir, "error", err)
		return 0
	}

	removed := 0
	cutoff := time.Now().Add(-j.maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to remove stale artifact", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Reclaimed stale scratch artifacts", "count", removed)
	}
	return removed
}

// Run sweeps on the given interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}
