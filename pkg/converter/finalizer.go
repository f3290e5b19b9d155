package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// runFiles are written by the run itself and never listed in ordering files.
var runFiles = map[string]bool{
	AuditLogFileName: true,
	ManifestFileName: true,
	ReportFileName:   true,
	LandingFileName:  true,
	OrderFileName:    true,
}

// FinalizeStats counts what Finalize wrote.
type FinalizeStats struct {
	LandingFiles int
	OrderFiles   int
}

// Finalize runs the directory passes over every destination root
// concurrently: each directory without a landing file gets one, and each
// directory that already has an ordering file gets it recomputed.
func Finalize(ctx context.Context, roots []string, handler slog.Handler) (FinalizeStats, error) {
	logger := slog.New(handler).With(slog.String("component", "finalizer"))
	var landing, order atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, root := range roots {
		root := root
		g.Go(func() error {
			l, o, err := finalizeRoot(gctx, root, logger)
			landing.Add(int64(l))
			order.Add(int64(o))
			return err
		})
	}
	err := g.Wait()
	stats := FinalizeStats{LandingFiles: int(landing.Load()), OrderFiles: int(order.Load())}
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrFinalize, err)
	}
	return stats, nil
}

func finalizeRoot(ctx context.Context, root string, logger *slog.Logger) (landing, order int, err error) {
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		created, err := ensureLanding(p)
		if err != nil {
			return err
		}
		if created {
			landing++
			logger.Debug("Created landing file", slog.String("dir", p))
		}
		rewritten, err := rewriteOrder(p)
		if err != nil {
			return err
		}
		if rewritten {
			order++
			logger.Debug("Rewrote ordering file", slog.String("dir", p))
		}
		return nil
	})
	logger.Info("Finalized destination", slog.String("root", root), slog.Int("landingFiles", landing), slog.Int("orderFiles", order))
	return landing, order, err
}

// ensureLanding writes index.md into dir when it is missing. The title is the
// directory's basename, kept exactly.
func ensureLanding(dir string) (bool, error) {
	p := filepath.Join(dir, LandingFileName)
	if _, err := os.Stat(p); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	content, err := renderDocument(filepath.Base(dir), "")
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// rewriteOrder recomputes dir's ordering file if one exists.
func rewriteOrder(dir string) (bool, error) {
	p := filepath.Join(dir, OrderFileName)
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	entries, err := orderEntries(dir)
	if err != nil {
		return false, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return false, err
	}
	if err := enc.Close(); err != nil {
		return false, err
	}
	return true, os.WriteFile(p, buf.Bytes(), 0o644)
}

// orderEntries lists the subdirectories and documents of dir, normalized and
// sorted.
func orderEntries(dir string) ([]string, error) {
	list, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]string, 0, len(list))
	for _, e := range list {
		name := e.Name()
		switch {
		case strings.HasPrefix(name, "."), runFiles[name]:
			continue
		case e.IsDir():
		case strings.EqualFold(filepath.Ext(name), OutputExtension):
			name = strings.TrimSuffix(name, filepath.Ext(name))
		default:
			continue
		}
		entries = append(entries, OrderEntry(name))
	}
	sort.Strings(entries)
	return entries, nil
}

// OrderEntry normalizes a name for the ordering file: lowercased, with runs
// of whitespace replaced by a single dash.
func OrderEntry(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}
