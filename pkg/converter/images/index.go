// Package images resolves image references found in documents to local files,
// uploads them and rewrites the references to hosted URLs.
package images

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/jmadden/readme-docs-migration-github/pkg/util"
)

// ErrIndex is returned when the images root cannot be walked.
var ErrIndex = errors.New("image index failed")

// Extensions lists the file extensions indexed as images.
var Extensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".webp": true, ".avif": true, ".bmp": true, ".ico": true,
}

// Index maps image files under a root directory by relative path and by
// basename. It is built once and is read-only afterwards.
type Index struct {
	Root   string
	byRel  map[string]string
	byBase map[string][]string
	rels   map[string]string
}

// BuildIndex walks root and records every image file not excluded by ignore.
// Basename candidates keep walk order.
func BuildIndex(ctx context.Context, root string, ignore *util.IgnoreMatcher, handler slog.Handler) (*Index, error) {
	logger := slog.New(handler).With(slog.String("component", "images"))
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndex, err)
	}
	ix := &Index{
		Root:   abs,
		byRel:  make(map[string]string),
		byBase: make(map[string][]string),
		rels:   make(map[string]string),
	}
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == abs {
				return err
			}
			logger.Warn("Skipping unreadable path in images root", "path", p, "error", err.Error())
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ignored, _ := ignore.Match(rel, d.IsDir()); ignored {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !Extensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		ix.byRel[rel] = p
		ix.rels[p] = rel
		base := path.Base(rel)
		ix.byBase[base] = append(ix.byBase[base], p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", ErrIndex, abs, err)
	}
	logger.Info("Image index built", "root", abs, "images", len(ix.byRel))
	return ix, nil
}

// Len returns the number of indexed images.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.byRel)
}

// Lookup returns the absolute path for a slash-separated relative path.
func (ix *Index) Lookup(rel string) (string, bool) {
	p, ok := ix.byRel[rel]
	return p, ok
}

// Candidates returns the absolute paths of every image named base.
func (ix *Index) Candidates(base string) []string {
	return ix.byBase[base]
}

// Rel returns the slash-separated path of abs relative to the root.
func (ix *Index) Rel(abs string) string {
	return ix.rels[abs]
}
