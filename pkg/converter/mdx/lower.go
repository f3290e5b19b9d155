package mdx

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	tableTagPattern       = regexp.MustCompile(`(?i)</?(?:table|thead|tbody|tfoot|tr|td|th|caption|colgroup)\b`)
	capitalizedTagPattern = regexp.MustCompile(`</?[A-Z]`)
	listItemPattern       = regexp.MustCompile(`(?is)<li\b[^>]*>(.*?)</li\s*>`)
)

// DefaultKeep keeps tables, the named components and any capitalized tag.
func DefaultKeep(components []string) func(raw string) bool {
	var named *regexp.Regexp
	if len(components) > 0 {
		quoted := make([]string, len(components))
		for i, c := range components {
			quoted[i] = regexp.QuoteMeta(c)
		}
		named = regexp.MustCompile(`</?(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return func(raw string) bool {
		if tableTagPattern.MatchString(raw) || capitalizedTagPattern.MatchString(raw) {
			return true
		}
		return named != nil && named.MatchString(raw)
	}
}

type lowering struct {
	pattern *regexp.Regexp
	replace func(m []string) (string, bool)
}

// lowerings run in this order against each raw markup node.
var lowerings = buildLowerings()

func buildLowerings() []lowering {
	var out []lowering
	for level := 1; level <= 6; level++ {
		n := strconv.Itoa(level)
		hashes := strings.Repeat("#", level)
		out = append(out, lowering{
			pattern: regexp.MustCompile(`(?is)<h` + n + `\b[^>]*>(.*?)</h` + n + `\s*>`),
			replace: func(m []string) (string, bool) {
				return hashes + " " + StripTags(m[1]) + "\n\n", true
			},
		})
	}
	out = append(out,
		lowering{
			pattern: regexp.MustCompile(`(?is)<p\b[^>]*>(.*?)</p\s*>`),
			replace: func(m []string) (string, bool) {
				return StripTags(m[1]) + "\n\n", true
			},
		},
		lowering{
			pattern: regexp.MustCompile(`(?i)<br\s*/?>`),
			replace: func([]string) (string, bool) {
				return "  \n", true
			},
		},
		lowering{
			pattern: regexp.MustCompile(`(?is)<(?:b|strong)\b[^>]*>(.*?)</(?:b|strong)\s*>`),
			replace: func(m []string) (string, bool) {
				return "**" + StripTags(m[1]) + "**", true
			},
		},
		lowering{
			pattern: regexp.MustCompile(`(?is)<(?:i|em)\b[^>]*>(.*?)</(?:i|em)\s*>`),
			replace: func(m []string) (string, bool) {
				return "*" + StripTags(m[1]) + "*", true
			},
		},
		lowering{
			pattern: regexp.MustCompile(`(?is)<ul\b[^>]*>(.*?)</ul\s*>`),
			replace: func(m []string) (string, bool) {
				return listLines(m, func(int) string { return "- " })
			},
		},
		lowering{
			pattern: regexp.MustCompile(`(?is)<ol\b[^>]*>(.*?)</ol\s*>`),
			replace: func(m []string) (string, bool) {
				return listLines(m, func(i int) string { return strconv.Itoa(i+1) + ". " })
			},
		},
	)
	return out
}

func listLines(m []string, marker func(int) string) (string, bool) {
	items := listItemPattern.FindAllStringSubmatch(m[1], -1)
	if len(items) == 0 {
		return m[0], false
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = marker(i) + StripTags(it[1])
	}
	return strings.Join(lines, "\n") + "\n\n", true
}

// lowerRaw applies every lowering in order and reports whether any fired.
func lowerRaw(raw string) (string, bool) {
	fired := false
	for _, l := range lowerings {
		raw = l.pattern.ReplaceAllStringFunc(raw, func(s string) string {
			out, ok := l.replace(l.pattern.FindStringSubmatch(s))
			if ok {
				fired = true
			}
			return out
		})
	}
	return raw, fired
}

var lowerableTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "b": true, "strong": true, "i": true, "em": true, "ul": true, "ol": true,
}

// Stage 6: raw markup is kept, lowered to Markdown text, or left alone.
func lowerHTML(doc *Document, keep func(string) bool, log *Log) *Document {
	doc = mergeInlineRuns(doc, lowerableTags)
	lower := func(h *HTML) (string, bool) {
		if keep(h.Raw) {
			h.Opaque = true
			return "", false
		}
		out, fired := lowerRaw(h.Raw)
		if fired {
			log.StrippedHTML = append(log.StrippedHTML, h.Raw)
		} else {
			log.Unlowered = append(log.Unlowered, h.Raw)
		}
		return out, fired
	}
	return mapper{
		block: func(b Block) []Block {
			h, ok := b.(*HTML)
			if !ok || h.Opaque {
				return []Block{b}
			}
			if out, fired := lower(h); fired {
				return []Block{&Paragraph{Inlines: []Inline{&Text{Value: strings.TrimSpace(out)}}}}
			}
			return []Block{h}
		},
		inline: func(n Inline) []Inline {
			h, ok := n.(*HTML)
			if !ok || h.Opaque {
				return []Inline{n}
			}
			if out, fired := lower(h); fired {
				return []Inline{&Text{Value: out}}
			}
			return []Inline{h}
		},
	}.document(doc)
}

// StripTags returns the text of s with every tag removed. Entities are kept
// as written.
func StripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.TextToken:
			sb.Write(z.Raw())
		}
	}
}

// Stage 7 (optional): unlabeled code blocks get a detected language.
func annotateCode(doc *Document, d LanguageDetector, minConfidence float64) *Document {
	return mapper{
		block: func(b Block) []Block {
			cb, ok := b.(*CodeBlock)
			if !ok || cb.Info != "" || strings.TrimSpace(cb.Text) == "" {
				return []Block{b}
			}
			lang, confidence, err := d.Detect([]byte(cb.Text), "")
			if err != nil || confidence < minConfidence || lang == "" || lang == "plaintext" || lang == "unknown" {
				return []Block{b}
			}
			return []Block{&CodeBlock{Info: lang, Text: cb.Text}}
		},
	}.document(doc)
}
