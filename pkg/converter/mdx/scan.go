package mdx

import (
	"strings"
)

// scanBalanced returns the substring of s from the opening brace at open up
// to and including its matching closing brace, and the index of that closing
// brace. Depth is counted over '{' and '}' only. It returns ("", -1) when
// s[open] is not '{' or the braces never balance.
func scanBalanced(s string, open int) (string, int) {
	if open < 0 || open >= len(s) || s[open] != '{' {
		return "", -1
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[open : i+1], i
			}
		}
	}
	return "", -1
}

// tag is an embedded tag found by scanTag.
type tag struct {
	Name        string
	Attrs       []Attr
	Closing     bool
	SelfClosing bool
	// End is the index just past the closing '>'.
	End int
}

type scanResult int

const (
	scanNotTag scanResult = iota
	scanComplete
	scanIncomplete
)

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '-' || c == '_' || c == '.' || c == ':'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// scanTag parses a JSX-style tag starting at s[i] == '<'. Attribute values may
// be quoted strings, bare tokens or brace expressions with nested braces and
// embedded markup. scanIncomplete means s ended before the tag did.
func scanTag(s string, i int) (tag, scanResult) {
	var t tag
	if i >= len(s) || s[i] != '<' {
		return t, scanNotTag
	}
	p := i + 1
	if p < len(s) && s[p] == '/' {
		t.Closing = true
		p++
	}
	if p >= len(s) {
		return t, scanIncomplete
	}
	if !isNameStart(s[p]) {
		// JSX fragments <> and </>.
		if s[p] == '>' {
			t.End = p + 1
			return t, scanComplete
		}
		return t, scanNotTag
	}
	start := p
	for p < len(s) && isNameChar(s[p]) {
		p++
	}
	t.Name = s[start:p]
	for {
		for p < len(s) && isSpace(s[p]) {
			p++
		}
		if p >= len(s) {
			return t, scanIncomplete
		}
		switch c := s[p]; {
		case c == '>':
			t.End = p + 1
			return t, scanComplete
		case c == '/':
			if p+1 >= len(s) {
				return t, scanIncomplete
			}
			if s[p+1] != '>' {
				return t, scanNotTag
			}
			t.SelfClosing = true
			t.End = p + 2
			return t, scanComplete
		case c == '{':
			// spread attribute {...props}
			expr, end := scanBalanced(s, p)
			if end < 0 {
				return t, scanIncomplete
			}
			t.Attrs = append(t.Attrs, Attr{Value: expr[1 : len(expr)-1], Expr: true})
			p = end + 1
		case isNameStart(c) || c == '_':
			ns := p
			for p < len(s) && isNameChar(s[p]) {
				p++
			}
			a := Attr{Name: s[ns:p]}
			q := p
			for q < len(s) && isSpace(s[q]) {
				q++
			}
			if q >= len(s) {
				return t, scanIncomplete
			}
			if s[q] != '=' {
				t.Attrs = append(t.Attrs, a)
				continue
			}
			q++
			for q < len(s) && isSpace(s[q]) {
				q++
			}
			if q >= len(s) {
				return t, scanIncomplete
			}
			switch s[q] {
			case '"', '\'':
				end := strings.IndexByte(s[q+1:], s[q])
				if end < 0 {
					return t, scanIncomplete
				}
				a.Value = s[q+1 : q+1+end]
				p = q + end + 2
			case '{':
				expr, end := scanBalanced(s, q)
				if end < 0 {
					return t, scanIncomplete
				}
				a.Value = expr[1 : len(expr)-1]
				a.Expr = true
				p = end + 1
			default:
				vs := q
				for q < len(s) && !isSpace(s[q]) && s[q] != '>' && s[q] != '"' && s[q] != '\'' {
					if s[q] == '/' && q+1 < len(s) && s[q+1] == '>' {
						break
					}
					q++
				}
				if q == vs {
					return t, scanNotTag
				}
				a.Value = s[vs:q]
				a.Bare = true
				p = q
			}
			t.Attrs = append(t.Attrs, a)
		default:
			return t, scanNotTag
		}
	}
}

// hasExprAttr reports whether any attribute was written as a brace expression.
func (t tag) hasExprAttr() bool {
	for _, a := range t.Attrs {
		if a.Expr {
			return true
		}
	}
	return false
}

func isComponentName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

// scanExpression finds the end of a {...} expression starting at s[i].
func scanExpression(s string, i int) (int, scanResult) {
	_, end := scanBalanced(s, i)
	if end < 0 {
		return 0, scanIncomplete
	}
	return end + 1, scanComplete
}

func leadingIndent(line string) string {
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return line[:n]
}
