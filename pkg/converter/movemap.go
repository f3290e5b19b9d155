package converter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	moveFileHeaders = map[string]bool{"file": true, "filename": true, "name": true}
	moveDestHeaders = map[string]bool{"destination": true, "dest": true, "directory": true, "dir": true, "path": true}
)

// MoveDecision is the outcome of looking a document up in the move map.
type MoveDecision int

const (
	// MoveNone: the document has no entry.
	MoveNone MoveDecision = iota
	// MoveTo: the document goes to the mapped directory.
	MoveTo
	// MoveAmbiguous: several rows map the filename to different directories.
	MoveAmbiguous
	// MoveDestMissing: the mapped directory does not exist.
	MoveDestMissing
	// MoveDestNotDir: the mapped path exists but is not a directory.
	MoveDestNotDir
)

// MoveMap relocates specific output files by filename. Destinations are
// used literally; only the filename lookup is case-insensitive.
type MoveMap struct {
	dest      map[string]string
	ambiguous map[string][]string
}

// LoadMoveMap reads a two-column CSV. The column order is taken from a
// header row when one is present and is (file, destination) otherwise.
// Relative destinations are resolved against root.
func LoadMoveMap(path, root string) (*MoveMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMoveMap, err)
	}
	defer f.Close()
	return ParseMoveMap(f, root)
}

// ParseMoveMap reads a move map from r.
func ParseMoveMap(r io.Reader, root string) (*MoveMap, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMoveMap, err)
	}
	fileCol, destCol := 0, 1
	if len(records) > 0 && len(records[0]) >= 2 {
		a := strings.ToLower(strings.TrimSpace(records[0][0]))
		b := strings.ToLower(strings.TrimSpace(records[0][1]))
		switch {
		case moveFileHeaders[a] && moveDestHeaders[b]:
			records = records[1:]
		case moveDestHeaders[a] && moveFileHeaders[b]:
			fileCol, destCol = 1, 0
			records = records[1:]
		}
	}

	m := &MoveMap{dest: make(map[string]string), ambiguous: make(map[string][]string)}
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		name := strings.TrimSpace(rec[fileCol])
		dest := rec[destCol]
		if name == "" || strings.TrimSpace(dest) == "" {
			continue
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(root, dest)
		}
		key := strings.ToLower(name)
		if dests, ok := m.ambiguous[key]; ok {
			m.ambiguous[key] = appendUnique(dests, dest)
			continue
		}
		if prev, ok := m.dest[key]; ok && prev != dest {
			m.ambiguous[key] = []string{prev, dest}
			delete(m.dest, key)
			continue
		}
		m.dest[key] = dest
	}
	return m, nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// Len returns the number of usable entries.
func (m *MoveMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.dest)
}

// Resolve looks up the first of names that has an entry and checks that its
// destination is an existing directory. The returned path is the mapped
// directory (or the conflicting destinations joined by "; " when ambiguous).
func (m *MoveMap) Resolve(names ...string) (string, MoveDecision) {
	if m == nil {
		return "", MoveNone
	}
	for _, n := range names {
		key := strings.ToLower(n)
		if dests, ok := m.ambiguous[key]; ok {
			return strings.Join(dests, "; "), MoveAmbiguous
		}
		dest, ok := m.dest[key]
		if !ok {
			continue
		}
		fi, err := os.Stat(dest)
		switch {
		case err != nil:
			return dest, MoveDestMissing
		case !fi.IsDir():
			return dest, MoveDestNotDir
		}
		return dest, MoveTo
	}
	return "", MoveNone
}
