package sessionlog

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/libertycall/ivr-gateway/internal/logging"
)

// Janitor deletes session directories under root older than the
// configured retention window (§4.11: "A janitor deletes session
// directories older than 30 days"). No pack repo exercises a retention
// sweep; this is built on stdlib time.Ticker + os.ReadDir/os.RemoveAll,
// the same stdlib-only shape the teacher uses for its own background
// loops (no scheduling library anywhere in the pack).
type Janitor struct {
	root      string
	retention time.Duration
	interval  time.Duration
	log       logging.Logger
}

// NewJanitor builds a janitor sweeping root every interval, removing any
// date-named subdirectory (YYYY-MM-DD) older than retentionDays.
func NewJanitor(root string, retentionDays int, interval time.Duration, log logging.Logger) *Janitor {
	if log == nil {
		log = logging.NewNop()
	}
	return &Janitor{
		root:      root,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		log:       log,
	}
}

// Run sweeps on a ticker until ctx is cancelled. Call it in its own
// goroutine at process startup.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweepOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweepOnce()
		}
	}
}

func (j *Janitor) sweepOnce() {
	entries, err := os.ReadDir(j.root)
	if err != nil {
		j.log.Warnw("janitor_readdir_failed", "root", j.root, "error", err)
		return
	}

	cutoff := time.Now().Add(-j.retention)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		day, err := time.Parse("2006-01-02", entry.Name())
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			path := filepath.Join(j.root, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				j.log.Errorw("janitor_remove_failed", "path", path, "error", err)
				continue
			}
			j.log.Infow("janitor_removed_session_dir", "path", path)
		}
	}
}
