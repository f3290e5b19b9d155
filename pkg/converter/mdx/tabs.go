package mdx

import (
	"regexp"
	"strings"
)

const (
	tabsOpen     = "<Tabs"
	tabsClose    = "</Tabs>"
	tabItemName  = "TabItem"
	tabItemOpen  = "<" + tabItemName
	tabItemClose = "</" + tabItemName + ">"
	tabIndent    = "   "
	defaultTab   = "Tab"
)

var (
	laxObjectPattern = regexp.MustCompile(`\{[^{}]*\}`)
	markupPattern    = regexp.MustCompile(`<[^>]*>`)
	titleEscaper     = strings.NewReplacer("&", "&amp;", `"`, "&quot;", "<", "&lt;", ">", "&gt;")
)

// fieldPatterns are tried in order: double quoted, single quoted, brace
// wrapped, bare token. %s is the field name.
var fieldPatterns = []string{
	`\b%s\s*:\s*"([^"]*)"`,
	`\b%s\s*:\s*'([^']*)'`,
	`\b%s\s*:\s*(\{[^}]*\})`,
	`\b%s\s*:\s*([^,}\s][^,}]*)`,
}

func compileAll(patterns []string, name string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(strings.ReplaceAll(p, "%s", name))
	}
	return out
}

var (
	valueField = compileAll(fieldPatterns, "value")
	labelField = compileAll(fieldPatterns, "label")
)

func firstMatch(patterns []*regexp.Regexp, s string) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// ConvertTabs rewrites Docusaurus <Tabs>/<TabItem> blocks into ReadMe
// <Tabs>/<Tab title="..."> blocks. A block without recognizable items is
// left byte-for-byte unchanged.
func ConvertTabs(src string) string {
	var sb strings.Builder
	pos := 0
	for {
		i := strings.Index(src[pos:], tabsOpen)
		if i < 0 {
			break
		}
		start := pos + i
		after := start + len(tabsOpen)
		if after < len(src) && isNameChar(src[after]) {
			sb.WriteString(src[pos:after])
			pos = after
			continue
		}
		tagEnd, labels := tabsOpeningTag(src, start)
		if tagEnd < 0 {
			sb.WriteString(src[pos:after])
			pos = after
			continue
		}
		c := strings.Index(src[tagEnd:], tabsClose)
		if c < 0 {
			break
		}
		closeAt := tagEnd + c
		sb.WriteString(src[pos:start])
		if out, ok := rebuildTabs(src[tagEnd:closeAt], labels); ok {
			sb.WriteString(out)
		} else {
			sb.WriteString(src[start : closeAt+len(tabsClose)])
		}
		pos = closeAt + len(tabsClose)
	}
	sb.WriteString(src[pos:])
	return sb.String()
}

// tabsOpeningTag returns the index just past the opening tag's '>' and the
// value→label mapping read from its values attribute.
func tabsOpeningTag(src string, start int) (int, map[string]string) {
	naive := strings.IndexByte(src[start:], '>')
	if naive < 0 {
		return -1, nil
	}
	naive += start
	v := strings.Index(src[start:], "values=")
	if v < 0 || start+v > naive {
		return naive + 1, nil
	}
	brace := strings.IndexByte(src[start+v:], '{')
	if brace < 0 {
		return naive + 1, nil
	}
	brace += start + v
	span, closeIdx := scanBalanced(src, brace)
	if closeIdx < 0 {
		return -1, nil
	}
	gt := strings.IndexByte(src[closeIdx:], '>')
	if gt < 0 {
		return -1, nil
	}
	return closeIdx + gt + 1, valueLabels(arraySource(span))
}

// arraySource returns the text between the first '[' and the last ']'.
func arraySource(span string) string {
	l := strings.IndexByte(span, '[')
	r := strings.LastIndexByte(span, ']')
	if l < 0 || r <= l {
		return ""
	}
	return span[l+1 : r]
}

// topLevelObjects splits an array literal into its top-level {...} objects.
func topLevelObjects(src string) []string {
	var out []string
	for i := 0; i < len(src); i++ {
		if src[i] != '{' {
			continue
		}
		obj, end := scanBalanced(src, i)
		if end < 0 {
			break
		}
		out = append(out, obj)
		i = end
	}
	if len(out) == 0 {
		out = laxObjectPattern.FindAllString(src, -1)
	}
	return out
}

func valueLabels(array string) map[string]string {
	labels := make(map[string]string)
	for _, obj := range topLevelObjects(array) {
		value, ok := firstMatch(valueField, obj)
		if !ok {
			continue
		}
		value = unwrap(value)
		label, _ := firstMatch(labelField, obj)
		label = unwrap(strings.TrimSpace(stripMarkup(label)))
		if label == "" {
			label = value
		}
		labels[value] = label
	}
	return labels
}

// unwrap removes one layer of surrounding quotes or braces.
func unwrap(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if (first == '"' || first == '\'' || first == '`') && last == first || first == '{' && last == '}' {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func stripMarkup(s string) string {
	return markupPattern.ReplaceAllString(s, "")
}

type tabItem struct {
	attrs []Attr
	body  string
}

// tabItems finds the TabItem children of a tabs block. Opening tags are read
// with scanTag, so attribute values may contain '>' and markup.
func tabItems(inner string) []tabItem {
	var items []tabItem
	pos := 0
	for {
		i := strings.Index(inner[pos:], tabItemOpen)
		if i < 0 {
			return items
		}
		start := pos + i
		after := start + len(tabItemOpen)
		t, res := scanTag(inner, start)
		if res != scanComplete || t.Name != tabItemName {
			pos = after
			continue
		}
		if t.SelfClosing {
			items = append(items, tabItem{attrs: t.Attrs})
			pos = t.End
			continue
		}
		c := strings.Index(inner[t.End:], tabItemClose)
		if c < 0 {
			return items
		}
		items = append(items, tabItem{attrs: t.Attrs, body: inner[t.End : t.End+c]})
		pos = t.End + c + len(tabItemClose)
	}
}

// attrValue returns the named attribute, with one layer of quoting removed
// from expression values.
func attrValue(attrs []Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name != name {
			continue
		}
		if a.Expr {
			return unwrap(a.Value), true
		}
		return strings.TrimSpace(a.Value), true
	}
	return "", false
}

func rebuildTabs(inner string, labels map[string]string) (string, bool) {
	items := tabItems(inner)
	if len(items) == 0 {
		return "", false
	}
	tabs := make([]string, len(items))
	for i, it := range items {
		value, hasValue := attrValue(it.attrs, "value")
		title, _ := attrValue(it.attrs, "label")
		title = strings.TrimSpace(stripMarkup(title))
		if title == "" {
			switch {
			case hasValue && labels[value] != "":
				title = labels[value]
			case hasValue && value != "":
				title = value
			default:
				title = defaultTab
			}
			title = strings.TrimSpace(stripMarkup(title))
		}
		tabs[i] = `<Tab title="` + titleEscaper.Replace(title) + `">` + "\n" + indentBody(it.body) + "\n</Tab>"
	}
	return "<Tabs>\n" + strings.Join(tabs, "\n\n") + "\n</Tabs>", true
}

// indentBody drops blank edge lines and the body's common indentation, then
// indents every non-blank line for the Tab container.
func indentBody(body string) string {
	lines := strings.Split(body, "\n")
	for len(lines) > 0 && isBlankString(lines[0]) {
		lines = lines[1:]
	}
	for len(lines) > 0 && isBlankString(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	common := ""
	first := true
	for _, l := range lines {
		if isBlankString(l) {
			continue
		}
		ind := leadingIndent(l)
		if first {
			common, first = ind, false
			continue
		}
		for !strings.HasPrefix(ind, common) {
			common = common[:len(common)-1]
		}
	}
	for i, l := range lines {
		if isBlankString(l) {
			lines[i] = ""
		} else {
			lines[i] = tabIndent + strings.TrimPrefix(l, common)
		}
	}
	return strings.Join(lines, "\n")
}
