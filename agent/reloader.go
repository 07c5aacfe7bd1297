package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nstehr/vimy/vimy-build/rules"
)

// GoalReloader runs in the background, periodically checking a goals file
// and swapping the engine's goal set when the file changes.
type GoalReloader struct {
	path     string
	engine   *rules.Engine
	interval time.Duration
	modTime  time.Time
}

func NewGoalReloader(engine *rules.Engine, path string, interval time.Duration) *GoalReloader {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &GoalReloader{path: path, engine: engine, interval: interval}
}

// Start blocks until ctx is cancelled.
func (r *GoalReloader) Start(ctx context.Context) {
	slog.Info("goal reloader started", "path", r.path, "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("goal reloader stopped")
			return
		case <-ticker.C:
			if _, err := r.Check(); err != nil {
				slog.Error("goal reload failed", "path", r.path, "error", err)
			}
		}
	}
}

// Check reloads the file if it changed since the last successful load. A
// file that fails to parse or compile leaves the current goals in place.
func (r *GoalReloader) Check() (bool, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		return false, fmt.Errorf("stat goals: %w", err)
	}
	if !info.ModTime().After(r.modTime) {
		return false, nil
	}
	goals, err := rules.LoadGoals(r.path)
	if err != nil {
		return false, err
	}
	if err := r.engine.Swap(goals); err != nil {
		return false, err
	}
	r.modTime = info.ModTime()
	return true, nil
}
