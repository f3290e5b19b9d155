package mdx

import (
	"regexp"
	"strings"
)

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script\b([^>]*)>(.*?)</script\s*>`)
	scriptSelfClosing  = regexp.MustCompile(`(?is)<script\b([^>]*?)/>`)
	scriptSrcPattern   = regexp.MustCompile(`(?i)\bsrc\s*=\s*(?:"([^"]*)"|'([^']*)'|\{\s*["'` + "`" + `]([^"'` + "`" + `]*)["'` + "`" + `]\s*\})`)
	handlerAttrPattern = regexp.MustCompile(`\s+on[A-Z]\w*\s*=\s*`)
)

var scriptTags = map[string]bool{"script": true}

// Stage 5: script blocks and on* event handler attributes are removed.
func stripScripts(doc *Document, log *Log) *Document {
	doc = mergeInlineRuns(doc, scriptTags)
	return mapper{
		block: func(b Block) []Block {
			switch v := b.(type) {
			case *HTML:
				if v.Opaque {
					return []Block{v}
				}
				raw := removeHandlers(removeScripts(v.Raw, log), log)
				if strings.TrimSpace(raw) == ScriptRemovedMarker {
					return []Block{&Expression{Raw: ScriptRemovedMarker}}
				}
				return []Block{&HTML{Raw: raw}}
			case *Component:
				stripComponentHandlers(v, log)
			}
			return []Block{b}
		},
		inline: func(n Inline) []Inline {
			switch v := n.(type) {
			case *HTML:
				if v.Opaque {
					return []Inline{v}
				}
				raw := removeHandlers(removeScripts(v.Raw, log), log)
				if strings.TrimSpace(raw) == ScriptRemovedMarker {
					return []Inline{&Expression{Raw: ScriptRemovedMarker}}
				}
				return []Inline{&HTML{Raw: raw}}
			case *Component:
				stripComponentHandlers(v, log)
			}
			return []Inline{n}
		},
	}.document(doc)
}

var inlineOpenTag = regexp.MustCompile(`(?i)^<([a-z][a-z0-9]*)\b[^>]*>$`)

// mergeInlineRuns joins an inline open tag whose name is in names, the
// content after it and its closing tag into one raw node, so that a whole
// element can be matched at once.
func mergeInlineRuns(doc *Document, names map[string]bool) *Document {
	return mapper{
		block: func(b Block) []Block {
			switch v := b.(type) {
			case *Paragraph:
				v.Inlines = mergeRuns(v.Inlines, names)
			case *Heading:
				v.Inlines = mergeRuns(v.Inlines, names)
			}
			return []Block{b}
		},
	}.document(doc)
}

func mergeRuns(list []Inline, names map[string]bool) []Inline {
	out := make([]Inline, 0, len(list))
	for i := 0; i < len(list); i++ {
		open, ok := list[i].(*HTML)
		var m []string
		if ok && !open.Opaque {
			m = inlineOpenTag.FindStringSubmatch(strings.TrimSpace(open.Raw))
		}
		if m == nil || !names[strings.ToLower(m[1])] {
			out = append(out, list[i])
			continue
		}
		closing := "</" + strings.ToLower(m[1])
		end := -1
		for j := i + 1; j < len(list) && end < 0; j++ {
			h, ok := list[j].(*HTML)
			if !ok {
				continue
			}
			r := strings.ToLower(strings.TrimSpace(h.Raw))
			if strings.HasPrefix(r, closing) && strings.TrimSpace(strings.TrimSuffix(r[len(closing):], ">")) == "" {
				end = j
			}
		}
		if end < 0 {
			out = append(out, list[i])
			continue
		}
		out = append(out, &HTML{Raw: RenderInlines(list[i : end+1])})
		i = end
	}
	return out
}

func removeScripts(raw string, log *Log) string {
	replace := func(attrs, code string) string {
		if m := scriptSrcPattern.FindStringSubmatch(attrs); m != nil {
			log.Scripts = append(log.Scripts, "SCRIPT SRC: "+firstNonEmpty(m[1:]...))
		} else if code = strings.TrimSpace(code); code != "" {
			log.Scripts = append(log.Scripts, "SCRIPT INLINE CODE: "+code)
		}
		return ScriptRemovedMarker
	}
	raw = scriptBlockPattern.ReplaceAllStringFunc(raw, func(s string) string {
		m := scriptBlockPattern.FindStringSubmatch(s)
		return replace(m[1], m[2])
	})
	return scriptSelfClosing.ReplaceAllStringFunc(raw, func(s string) string {
		m := scriptSelfClosing.FindStringSubmatch(s)
		return replace(m[1], "")
	})
}

// removeHandlers strips on* attributes from every tag found in raw.
func removeHandlers(raw string, log *Log) string {
	var sb strings.Builder
	i := 0
	for i < len(raw) {
		j := strings.IndexByte(raw[i:], '<')
		if j < 0 {
			break
		}
		j += i
		t, res := scanTag(raw, j)
		if res != scanComplete || t.Closing || t.Name == "" {
			sb.WriteString(raw[i : j+1])
			i = j + 1
			continue
		}
		fragment := raw[j:t.End]
		sb.WriteString(raw[i:j])
		cleaned, removed := stripHandlerAttrs(fragment)
		if removed {
			log.Scripts = append(log.Scripts, "EVENT HANDLER REMOVED: "+truncate(fragment, handlerSnippetLen))
		}
		sb.WriteString(cleaned)
		i = t.End
	}
	sb.WriteString(raw[i:])
	return sb.String()
}

// stripHandlerAttrs removes on[A-Z]* attributes with quoted or brace values.
func stripHandlerAttrs(fragment string) (string, bool) {
	locs := handlerAttrPattern.FindAllStringIndex(fragment, -1)
	removed := false
	for k := len(locs) - 1; k >= 0; k-- {
		start, valueStart := locs[k][0], locs[k][1]
		if valueStart >= len(fragment) {
			continue
		}
		end := -1
		switch fragment[valueStart] {
		case '"', '\'':
			if q := strings.IndexByte(fragment[valueStart+1:], fragment[valueStart]); q >= 0 {
				end = valueStart + q + 2
			}
		case '{':
			if _, closeIdx := scanBalanced(fragment, valueStart); closeIdx >= 0 {
				end = closeIdx + 1
			}
		}
		if end < 0 {
			continue
		}
		fragment = fragment[:start] + fragment[end:]
		removed = true
	}
	return fragment, removed
}

func stripComponentHandlers(c *Component, log *Log) {
	cleaned, removed := stripHandlerAttrs(c.Raw)
	if !removed {
		return
	}
	log.Scripts = append(log.Scripts, "EVENT HANDLER REMOVED: "+truncate(c.Raw, handlerSnippetLen))
	c.Raw = cleaned
	if t, res := scanTag(cleaned, 0); res == scanComplete {
		c.Attrs = t.Attrs
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
