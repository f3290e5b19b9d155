package mdx

import (
	"regexp"
	"strings"
)

var (
	importPattern    = regexp.MustCompile(`(?m)^[ \t]*import\s+(?:[^'";]*?\s+from\s+)?['"][^'"\n]+['"][ \t]*;?[ \t]*$\n?`)
	blankRunsPattern = regexp.MustCompile(`\n{3,}`)
)

// StripImports removes ESM import lines and returns the cleaned text and the
// removed statements in order. Fenced code blocks are left untouched.
func StripImports(src string) (string, []string) {
	var removed []string
	var sb strings.Builder
	for _, r := range splitFences(src) {
		if r.fenced {
			sb.WriteString(r.text)
			continue
		}
		n := len(removed)
		text := importPattern.ReplaceAllStringFunc(r.text, func(s string) string {
			removed = append(removed, strings.TrimSpace(s))
			return ""
		})
		if len(removed) > n {
			text = blankRunsPattern.ReplaceAllString(text, "\n\n")
		}
		sb.WriteString(text)
	}
	if len(removed) == 0 {
		return src, nil
	}
	return strings.TrimLeft(sb.String(), "\n"), removed
}

type region struct {
	text   string
	fenced bool
}

// splitFences cuts src into runs of ordinary text and fenced code blocks,
// fence lines included. A fence that never closes runs to the end of src.
func splitFences(src string) []region {
	var out []region
	start, fence := 0, ""
	for pos := 0; pos < len(src); {
		end := strings.IndexByte(src[pos:], '\n')
		if end < 0 {
			end = len(src)
		} else {
			end += pos + 1
		}
		line := strings.TrimSpace(src[pos:end])
		switch {
		case fence == "":
			if f := openingFence(line); f != "" {
				if pos > start {
					out = append(out, region{text: src[start:pos]})
				}
				start, fence = pos, f
			}
		case len(line) >= len(fence) && strings.Trim(line, fence[:1]) == "":
			out = append(out, region{text: src[start:end], fenced: true})
			start, fence = end, ""
		}
		pos = end
	}
	if start < len(src) {
		out = append(out, region{text: src[start:], fenced: fence != ""})
	}
	return out
}

// openingFence returns the fence run that opens a code block on line, or "".
func openingFence(line string) string {
	if !strings.HasPrefix(line, "```") && !strings.HasPrefix(line, "~~~") {
		return ""
	}
	n := 0
	for n < len(line) && line[n] == line[0] {
		n++
	}
	if line[0] == '`' && strings.ContainsRune(line[n:], '`') {
		return ""
	}
	return line[:n]
}
