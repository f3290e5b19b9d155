package images

import (
	"regexp"
	"strings"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/mdx"
)

// MissingMarkerPrefix starts the legacy literal marker for an image that
// could not be found, as in "[Missing image: img/a.png]".
const MissingMarkerPrefix = "[Missing image: "

// Pair links a reference as written in the document to its hosted URL.
type Pair struct {
	Ref string
	URL string
}

var placeholderPattern = regexp.MustCompile(regexp.QuoteMeta(mdx.PlaceholderPrefix) + `(.*?)` + regexp.QuoteMeta(mdx.PlaceholderSuffix))

// Rewrite replaces every syntax form referencing each pair's path: the
// placeholder marker, the legacy missing-image marker, Markdown images, raw
// <img> tags and image helper calls. All forms are tried for every pair.
func Rewrite(text string, pairs []Pair) string {
	for _, p := range pairs {
		if p.Ref == "" || p.URL == "" {
			continue
		}
		ref := regexp.QuoteMeta(p.Ref)
		image := "![](" + p.URL + ")"

		text = strings.ReplaceAll(text, mdx.Placeholder(p.Ref), image)
		text = strings.ReplaceAll(text, MissingMarkerPrefix+p.Ref+"]", image)

		md := regexp.MustCompile(`!\[([^\]]*)\]\(\s*<?` + ref + `>?(\s+(?:"[^"]*"|'[^']*'))?\s*\)`)
		text = md.ReplaceAllStringFunc(text, func(m string) string {
			sub := md.FindStringSubmatch(m)
			return "![" + sub[1] + "](" + p.URL + sub[2] + ")"
		})

		img := regexp.MustCompile(`(<img\b[^>]*?\bsrc\s*=\s*\{?\s*)(["'])` + ref + `(["'])`)
		text = img.ReplaceAllStringFunc(text, func(m string) string {
			sub := img.FindStringSubmatch(m)
			return sub[1] + sub[2] + p.URL + sub[3]
		})

		helper := regexp.MustCompile(`\b(?:require|useBaseUrl)\(\s*["'` + "`" + `]` + ref + `["'` + "`" + `]\s*\)(?:\.default)?`)
		text = helper.ReplaceAllLiteralString(text, `"`+p.URL+`"`)
	}
	return text
}

// LowerPlaceholders turns each remaining placeholder marker back into a plain
// Markdown image of its original path, so unresolved images stay visible.
// Markers with an empty path are left as comments.
func LowerPlaceholders(text string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		path := placeholderPattern.FindStringSubmatch(m)[1]
		if strings.TrimSpace(path) == "" {
			return m
		}
		return "![](" + path + ")"
	})
}
