// Package util holds gitignore-style path matching shared by the document
// walker and the image index.
package util

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchesGitignore reports whether pathRel (relative to walkBase) matches
// pattern as defined in a file located at patternBase. A path also matches
// when one of its parent directories does. Rooted patterns only match from
// patternBase; others match at any depth below it.
func MatchesGitignore(pattern, patternBase, walkBase, pathRel string, rooted bool) bool {
	pattern = filepath.ToSlash(pattern)
	pathRel = filepath.ToSlash(pathRel)
	if pattern == "" || pathRel == "" || pathRel == "." {
		return false
	}
	rel, err := filepath.Rel(patternBase, filepath.Join(walkBase, filepath.FromSlash(pathRel)))
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}
	parts := strings.Split(rel, "/")
	starts := len(parts)
	if rooted {
		starts = 1
	}
	for i := 0; i < starts; i++ {
		for j := i + 1; j <= len(parts); j++ {
			if ok, _ := doublestar.Match(pattern, strings.Join(parts[i:j], "/")); ok {
				return true
			}
		}
	}
	return false
}

// IgnorePattern is one parsed line of an ignore file or flag.
type IgnorePattern struct {
	Pattern  string
	Original string
	Negated  bool
	DirOnly  bool
	Rooted   bool
	Base     string
}

// IgnoreMatcher applies ignore patterns in order; the last matching pattern
// wins, so a negated pattern can re-include a path.
type IgnoreMatcher struct {
	patterns []IgnorePattern
	root     string
}

// NewIgnoreMatcher loads fileName from root (when present) followed by the
// extra patterns, all relative to root.
func NewIgnoreMatcher(root, fileName string, extra []string) (*IgnoreMatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve ignore root: %w", err)
	}
	m := &IgnoreMatcher{root: abs}
	if fileName != "" {
		lines, err := ReadPatternFile(filepath.Join(abs, fileName))
		if err != nil {
			return nil, err
		}
		m.Add(lines, abs)
	}
	m.Add(extra, abs)
	return m, nil
}

// ReadPatternFile returns the non-empty, non-comment lines of path. A missing
// file yields no patterns.
func ReadPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ignore file %s: %w", path, err)
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file %s: %w", path, err)
	}
	return out, nil
}

// Add parses raw patterns defined relative to base.
func (m *IgnoreMatcher) Add(raw []string, base string) {
	for _, r := range raw {
		p := IgnorePattern{Original: r, Base: base}
		s := strings.TrimSpace(r)
		if strings.HasPrefix(s, "!") {
			p.Negated = true
			s = strings.TrimSpace(s[1:])
		}
		if strings.HasPrefix(s, "/") {
			p.Rooted = true
			s = strings.TrimPrefix(s, "/")
		}
		if strings.HasSuffix(s, "/") {
			p.DirOnly = true
			s = strings.TrimSuffix(s, "/")
		}
		if s == "" || !doublestar.ValidatePattern(s) {
			continue
		}
		p.Pattern = filepath.ToSlash(s)
		m.patterns = append(m.patterns, p)
	}
}

// Match reports whether relPath is ignored and the pattern that decided it.
func (m *IgnoreMatcher) Match(relPath string, isDir bool) (bool, string) {
	if m == nil {
		return false, ""
	}
	ignored, by := false, ""
	for _, p := range m.patterns {
		if p.DirOnly && !isDir && !m.underDir(p, relPath) {
			continue
		}
		if MatchesGitignore(p.Pattern, p.Base, m.root, relPath, p.Rooted) {
			ignored, by = !p.Negated, p.Original
		}
	}
	if !ignored {
		by = ""
	}
	return ignored, by
}

// underDir reports whether a directory-only pattern matches one of relPath's
// parent directories.
func (m *IgnoreMatcher) underDir(p IgnorePattern, relPath string) bool {
	dir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(relPath)))
	return dir != "." && MatchesGitignore(p.Pattern, p.Base, m.root, dir, p.Rooted)
}

// Len returns the number of parsed patterns.
func (m *IgnoreMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}
