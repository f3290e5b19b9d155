package converter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmadden/readme-docs-migration-github/pkg/util"
)

const dispatchWarnThreshold = time.Second

// Walker traverses the source directory in lexical order, applies ignore
// rules and dispatches every accepted document to the worker pool.
type Walker struct {
	opts       *Options
	root       string
	workerChan chan<- string
	hooks      Hooks
	logger     *slog.Logger
	ignore     *util.IgnoreMatcher
	extensions map[string]bool
	excluded   []string

	mu      sync.Mutex
	skipped []SkippedInfo
	found   int
}

// NewWalker loads the ignore file from the source root and prepares the walk.
func NewWalker(opts *Options, workerChan chan<- string, loggerHandler slog.Handler) (*Walker, error) {
	logger := slog.New(loggerHandler).With(slog.String("component", "walker"))
	root := opts.SourceDir()
	ignore, err := util.NewIgnoreMatcher(root, IgnoreFileName, opts.IgnorePatterns)
	if err != nil {
		logger.Error("Failed to initialize ignore pattern matcher", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to initialize ignore patterns: %w", err)
	}
	logger.Debug("Ignore patterns loaded", slog.Int("count", ignore.Len()))

	exts := make(map[string]bool)
	for _, e := range opts.SourceExtensions() {
		exts[e] = true
	}
	hooks := opts.EventHooks
	if hooks == nil {
		hooks = &NoOpHooks{}
	}
	var excluded []string
	for _, r := range opts.DestinationRoots() {
		if r != "" {
			excluded = append(excluded, filepath.Clean(r))
		}
	}
	return &Walker{
		opts:       opts,
		root:       root,
		workerChan: workerChan,
		hooks:      hooks,
		logger:     logger,
		ignore:     ignore,
		extensions: exts,
		excluded:   excluded,
	}, nil
}

// StartWalk traverses the source directory and closes the worker channel
// when done.
func (w *Walker) StartWalk(ctx context.Context) error {
	w.logger.Info("Starting directory walk", slog.String("path", w.root))
	walkErr := filepath.WalkDir(w.root, w.walkFunc(ctx))
	close(w.workerChan)
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			w.logger.Info("Directory walk cancelled", slog.String("reason", walkErr.Error()))
			return walkErr
		}
		w.logger.Error("Directory walk failed", slog.String("error", walkErr.Error()))
		return fmt.Errorf("directory walk failed: %w", walkErr)
	}
	w.logger.Info("Directory walk completed", slog.Int("documents", w.Found()))
	return nil
}

// Skipped returns the paths excluded by ignore patterns.
func (w *Walker) Skipped() []SkippedInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]SkippedInfo(nil), w.skipped...)
}

// Found returns the number of documents dispatched.
func (w *Walker) Found() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.found
}

func (w *Walker) isExcluded(absPath string) bool {
	for _, e := range w.excluded {
		if absPath == e {
			return true
		}
	}
	return false
}

func (w *Walker) walkFunc(ctx context.Context) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == w.root {
				return fmt.Errorf("cannot read source directory %q: %w", path, err)
			}
			w.logger.Warn("Error accessing path during walk", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.Type()&fs.ModeSymlink != 0 {
			w.logger.Debug("Skipping symbolic link", slog.String("path", path))
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			w.logger.Warn("Could not calculate relative path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		isDir := d.IsDir()
		if isDir && w.isExcluded(filepath.Clean(path)) {
			w.logger.Debug("Skipping destination directory inside source", slog.String("path", rel))
			return filepath.SkipDir
		}
		if !isDir && !w.extensions[strings.ToLower(filepath.Ext(rel))] {
			return nil
		}
		if ignored, pattern := w.ignore.Match(rel, isDir); ignored {
			w.logger.Debug("Path ignored", slog.String("path", rel), slog.Bool("isDir", isDir), slog.String("pattern", pattern))
			w.mu.Lock()
			w.skipped = append(w.skipped, SkippedInfo{Path: rel, Reason: SkipReasonIgnored, Details: "Matched pattern: " + pattern})
			w.mu.Unlock()
			if !isDir {
				if hookErr := w.hooks.OnFileStatusUpdate(rel, StatusSkipped, "Ignored by pattern: "+pattern, 0); hookErr != nil {
					w.logger.Warn("Event hook OnFileStatusUpdate failed", slog.String("path", rel), slog.String("error", hookErr.Error()))
				}
				return nil
			}
			return filepath.SkipDir
		}
		if isDir {
			return nil
		}

		if hookErr := w.hooks.OnFileDiscovered(rel); hookErr != nil {
			w.logger.Warn("Event hook OnFileDiscovered failed", slog.String("path", rel), slog.String("error", hookErr.Error()))
		}
		w.mu.Lock()
		w.found++
		w.mu.Unlock()

		timer := time.NewTimer(dispatchWarnThreshold)
		defer timer.Stop()
		select {
		case w.workerChan <- path:
		case <-timer.C:
			w.logger.Debug("Worker channel dispatch blocked", slog.String("path", rel), slog.Duration("threshold", dispatchWarnThreshold))
			select {
			case w.workerChan <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
}

// relPath is path relative to the source root with forward slashes.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}
