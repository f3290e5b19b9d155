// Package watch re-runs a migration whenever the source tree changes.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc performs one full migration.
type RunFunc func(ctx context.Context) error

// Config controls a watch loop.
type Config struct {
	// Root is the directory watched recursively.
	Root string
	// Exclude lists directories whose events never trigger a run, such as
	// destinations nested inside the source.
	Exclude []string
	// Extensions limits the files whose changes trigger a run. Empty means
	// every file.
	Extensions []string
	// IgnoreFile is a dotfile whose changes still trigger a run.
	IgnoreFile string
	Debounce   time.Duration
}

// Watcher batches filesystem events and calls a RunFunc once per quiet
// period.
type Watcher struct {
	cfg    Config
	run    RunFunc
	logger *slog.Logger
}

// New creates a Watcher. A non-positive debounce defaults to 300ms.
func New(cfg Config, run RunFunc, handler slog.Handler) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 300 * time.Millisecond
	}
	for i, e := range cfg.Exclude {
		cfg.Exclude[i] = filepath.Clean(e)
	}
	return &Watcher{
		cfg:    cfg,
		run:    run,
		logger: slog.New(handler).With(slog.String("component", "watch")),
	}
}

// Run performs an initial run, then watches until ctx is cancelled. Run
// errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addDirs(fw, w.cfg.Root); err != nil {
		return err
	}
	w.runOnce(ctx, "initial")
	w.logger.Info("Watching for changes", slog.String("root", w.cfg.Root), slog.Duration("debounce", w.cfg.Debounce))

	var timer *time.Timer
	var fire <-chan time.Time
	pending := 0
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("Watch stopped")
			return nil

		case <-fire:
			fire = nil
			w.logger.Debug("Re-running after changes", slog.Int("events", pending))
			w.runOnce(ctx, "change")
			pending = 0

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() && !w.excluded(ev.Name) {
					if addErr := w.addDirs(fw, ev.Name); addErr != nil {
						w.logger.Warn("Failed to watch new directory", slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
				}
			}
			if !w.relevant(ev) {
				continue
			}
			pending++
			w.logger.Debug("Change detected", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.cfg.Debounce)
			}
			fire = timer.C

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := w.run(ctx); err != nil {
		w.logger.Error("Migration run failed", slog.String("trigger", reason), slog.String("error", err.Error()))
		return
	}
	w.logger.Info("Migration run finished", slog.String("trigger", reason), slog.Duration("duration", time.Since(start)))
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod || w.excluded(ev.Name) {
		return false
	}
	base := filepath.Base(ev.Name)
	if base == w.cfg.IgnoreFile {
		return true
	}
	if strings.HasPrefix(base, ".") {
		return false
	}
	if len(w.cfg.Extensions) == 0 {
		return true
	}
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range w.cfg.Extensions {
		if ext == e {
			return true
		}
	}
	// A removed directory no longer stats.
	return ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && ext == ""
}

func (w *Watcher) excluded(p string) bool {
	p = filepath.Clean(p)
	for _, e := range w.cfg.Exclude {
		if p == e || strings.HasPrefix(p, e+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirs(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.excluded(p) || (p != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}
