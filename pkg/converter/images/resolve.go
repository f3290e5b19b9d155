package images

import (
	"net/url"
	"path"
	"strings"
)

// Similarity scores how alike two slash-separated paths are. Higher is closer.
type Similarity func(a, b string) int

// CommonSuffix returns the length of the longest common character suffix.
func CommonSuffix(a, b string) int {
	n := 0
	for i, j := len(a)-1, len(b)-1; i >= 0 && j >= 0 && a[i] == b[j]; i, j = i-1, j-1 {
		n++
	}
	return n
}

// Tier names the strategy that resolved a reference.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierSuffix
	TierBasename
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierSuffix:
		return "suffix"
	case TierBasename:
		return "basename"
	default:
		return "none"
	}
}

// Resolver maps document image references to files in an Index.
type Resolver struct {
	index *Index
	score Similarity
}

// NewResolver returns a Resolver using score to break basename ties. A nil
// score uses CommonSuffix.
func NewResolver(ix *Index, score Similarity) *Resolver {
	if score == nil {
		score = CommonSuffix
	}
	return &Resolver{index: ix, score: score}
}

// IsRemote reports whether ref points outside the local filesystem.
func IsRemote(ref string) bool {
	l := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") ||
		strings.HasPrefix(l, "data:") || strings.HasPrefix(l, "//")
}

// Normalize drops query and fragment, decodes escapes and strips leading
// "/" and "./" segments.
func Normalize(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if dec, err := url.PathUnescape(ref); err == nil {
		ref = dec
	}
	ref = strings.ReplaceAll(ref, "\\", "/")
	for {
		switch {
		case strings.HasPrefix(ref, "/"):
			ref = ref[1:]
		case strings.HasPrefix(ref, "./"):
			ref = ref[2:]
		default:
			if ref == "" {
				return ""
			}
			return path.Clean(ref)
		}
	}
}

// Resolve tries, in order, an exact relative-path match, progressively
// shorter path suffixes and finally a basename match scored by similarity.
// Ties keep the first candidate in walk order.
func (r *Resolver) Resolve(ref string) (string, Tier, bool) {
	if r.index == nil || IsRemote(ref) {
		return "", TierNone, false
	}
	norm := Normalize(ref)
	if norm == "" || norm == "." {
		return "", TierNone, false
	}
	if p, ok := r.index.Lookup(norm); ok {
		return p, TierExact, true
	}
	parts := strings.Split(norm, "/")
	for i := 1; i < len(parts); i++ {
		if p, ok := r.index.Lookup(strings.Join(parts[i:], "/")); ok {
			return p, TierSuffix, true
		}
	}
	candidates := r.index.Candidates(parts[len(parts)-1])
	if len(candidates) == 0 {
		return "", TierNone, false
	}
	best, bestScore := candidates[0], r.score(r.index.Rel(candidates[0]), norm)
	for _, c := range candidates[1:] {
		if s := r.score(r.index.Rel(c), norm); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, TierBasename, true
}
