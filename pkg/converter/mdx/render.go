package mdx

import (
	"bytes"
	"strconv"
	"strings"
)

// Serializer style.
const (
	bulletMarker  = "- "
	thematicBreak = "---"
	codeFence     = "```"
)

type printer struct {
	buf       bytes.Buffer
	prefix    []byte
	lineStart int
}

// Render serializes doc to Markdown. The result ends with a single newline
// unless the document is empty.
func Render(doc *Document) string {
	var p printer
	p.blocks(doc.Blocks, false)
	out := strings.TrimRight(p.buf.String(), "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}

// RenderInlines serializes inline content on its own.
func RenderInlines(list []Inline) string {
	var p printer
	p.inlines(list)
	return p.buf.String()
}

func (p *printer) nl() {
	line := p.buf.Bytes()[p.lineStart:]
	if len(bytes.TrimRight(line, " \t")) <= len(bytes.TrimRight(p.prefix, " \t")) {
		p.buf.Truncate(p.lineStart + len(bytes.TrimRight(line, " \t")))
	}
	p.buf.WriteByte('\n')
	p.lineStart = p.buf.Len()
	p.buf.Write(p.prefix)
}

func (p *printer) write(s string) {
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			p.buf.WriteString(s)
			return
		}
		p.buf.WriteString(s[:i])
		p.nl()
		s = s[i+1:]
	}
}

func (p *printer) push(s string) []byte {
	old := p.prefix
	p.prefix = append(append([]byte(nil), old...), s...)
	return old
}

func (p *printer) pop(old []byte) {
	p.prefix = old
}

func (p *printer) blocks(list []Block, tight bool) {
	for i, b := range list {
		if i > 0 {
			p.nl()
			if !tight {
				p.nl()
			}
		}
		p.block(b)
	}
}

func (p *printer) block(b Block) {
	switch v := b.(type) {
	case *Paragraph:
		p.inlines(v.Inlines)
	case *Heading:
		p.write(strings.Repeat("#", v.Level))
		if len(v.Inlines) > 0 {
			p.write(" ")
			p.inlines(v.Inlines)
		}
	case *ThematicBreak:
		p.write(thematicBreak)
	case *CodeBlock:
		fence := codeFence
		for strings.Contains(v.Text, fence) {
			fence += "`"
		}
		p.write(fence + v.Info)
		p.nl()
		if v.Text != "" {
			p.write(strings.TrimSuffix(v.Text, "\n"))
			p.nl()
		}
		p.write(fence)
	case *Blockquote:
		p.write("> ")
		old := p.push("> ")
		p.blocks(v.Blocks, false)
		p.pop(old)
	case *List:
		for i, item := range v.Items {
			if i > 0 {
				p.nl()
				if !v.Tight {
					p.nl()
				}
			}
			marker := bulletMarker
			if v.Ordered {
				marker = strconv.Itoa(v.Start+i) + ". "
			}
			p.write(marker)
			old := p.push(strings.Repeat(" ", len(marker)))
			p.blocks(item.Blocks, v.Tight)
			p.pop(old)
		}
	case *HTML:
		p.write(v.Raw)
	case *Expression:
		p.write(v.Raw)
	case *Component:
		p.write(v.Raw)
		if !v.Container {
			return
		}
		p.nl()
		if len(v.Children) > 0 {
			if !v.Tight {
				p.nl()
			}
			p.write(v.Indent)
			old := p.push(v.Indent)
			p.blocks(v.Children, false)
			p.pop(old)
			p.nl()
			if !v.Tight {
				p.nl()
			}
		}
		p.write(v.CloseRaw)
	}
}

func (p *printer) inlines(list []Inline) {
	for _, n := range list {
		p.inline(n)
	}
}

func (p *printer) inline(n Inline) {
	switch v := n.(type) {
	case *Text:
		p.write(v.Value)
	case *LineBreak:
		if v.Hard {
			p.write("  ")
		}
		p.nl()
	case *Emphasis:
		m := strings.Repeat("*", v.Level)
		p.write(m)
		p.inlines(v.Inlines)
		p.write(m)
	case *CodeSpan:
		ticks := strings.Repeat("`", longestRun(v.Code, '`')+1)
		pad := ""
		if strings.HasPrefix(v.Code, "`") || strings.HasSuffix(v.Code, "`") {
			pad = " "
		}
		p.write(ticks + pad + v.Code + pad + ticks)
	case *Link:
		if v.Autolink {
			p.write("<" + v.URL + ">")
			return
		}
		p.write("[")
		p.inlines(v.Inlines)
		p.write("](" + destination(v.URL, v.Title) + ")")
	case *Image:
		p.write("![")
		p.inlines(v.Alt)
		p.write("](" + destination(v.URL, v.Title) + ")")
	case *HTML:
		p.write(v.Raw)
	case *Component:
		p.write(v.Raw)
	case *Expression:
		p.write(v.Raw)
	}
}

func destination(url, title string) string {
	if strings.ContainsAny(url, " \t") {
		url = "<" + url + ">"
	}
	if title == "" {
		return url
	}
	return url + ` "` + strings.ReplaceAll(title, `"`, `\"`) + `"`
}

func longestRun(s string, c byte) int {
	best, cur := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}

// PlainText returns the text content of n without markup.
func PlainText(n Node) string {
	var sb strings.Builder
	Walk(n, func(c Node) bool {
		switch v := c.(type) {
		case *Text:
			sb.WriteString(v.Value)
		case *CodeSpan:
			sb.WriteString(v.Code)
		case *LineBreak:
			sb.WriteString(" ")
		case *Link:
			if v.Autolink {
				sb.WriteString(v.URL)
			}
		}
		return true
	})
	return strings.TrimSpace(sb.String())
}
