package mdx

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindJSXBlock is the goldmark node kind for embedded tags and expressions
// that occupy whole lines.
var KindJSXBlock = ast.NewNodeKind("JSXBlock")

// KindJSXInline is the goldmark node kind for embedded tags inside a paragraph.
var KindJSXInline = ast.NewNodeKind("JSXInline")

var jsxStackKey = parser.NewContextKey()

type jsxBlock struct {
	ast.BaseBlock

	buf        string
	expression bool
	scanning   bool
	container  bool
	closed     bool
	name       string

	indent      string
	seenChild   bool
	blankFirst  bool
	lastBlank   bool
	blankBefore bool
	closeRaw    string

	err error
}

func (n *jsxBlock) Kind() ast.NodeKind { return KindJSXBlock }

// IsRaw keeps goldmark from inline-parsing the tag lines; children are still parsed.
func (n *jsxBlock) IsRaw() bool { return true }

func (n *jsxBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Name":      n.name,
		"Container": fmt.Sprint(n.container),
	}, nil)
}

type jsxInline struct {
	ast.BaseInline
	Segment text.Segment
}

func (n *jsxInline) Kind() ast.NodeKind { return KindJSXInline }

func (n *jsxInline) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Raw": string(n.Segment.Value(source)),
	}, nil)
}

type jsxBlockParser struct{}

func (b *jsxBlockParser) Trigger() []byte {
	return []byte{'<', '{'}
}

func (b *jsxBlockParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || pos >= len(line) || (line[pos] != '<' && line[pos] != '{') {
		return nil, parser.NoChildren
	}
	node := &jsxBlock{buf: string(line[pos:])}
	if line[pos] == '{' {
		node.expression = true
		end, res := scanExpression(node.buf, 0)
		if res == scanComplete && !isBlankString(node.buf[end:]) {
			return nil, parser.NoChildren
		}
		node.scanning = res == scanIncomplete
	} else {
		t, res := scanTag(node.buf, 0)
		switch res {
		case scanNotTag:
			return nil, parser.NoChildren
		case scanIncomplete:
			if !isComponentName(t.Name) && !strings.Contains(node.buf, "{") {
				return nil, parser.NoChildren
			}
			node.scanning = true
		case scanComplete:
			if !isComponentName(t.Name) && !t.hasExprAttr() {
				return nil, parser.NoChildren
			}
			if !isBlankString(node.buf[t.End:]) {
				return nil, parser.NoChildren
			}
			node.name = t.Name
			if isComponentName(t.Name) && !t.Closing && !t.SelfClosing {
				node.container = true
				pushJSX(pc, node)
			}
		}
	}
	node.Lines().Append(segment)
	reader.Advance(segment.Len() - 1)
	if node.container {
		return node, parser.HasChildren
	}
	return node, parser.NoChildren
}

func (b *jsxBlockParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	n := node.(*jsxBlock)
	line, segment := reader.PeekLine()
	if n.scanning {
		n.Lines().Append(segment)
		n.buf += string(line)
		reader.Advance(segment.Len() - 1)
		if n.expression {
			if _, res := scanExpression(n.buf, 0); res == scanComplete {
				n.scanning = false
				return parser.Close
			}
			return parser.Continue | parser.NoChildren
		}
		t, res := scanTag(n.buf, 0)
		if res == scanIncomplete {
			return parser.Continue | parser.NoChildren
		}
		n.scanning = false
		n.name = t.Name
		if res == scanComplete && isComponentName(t.Name) && !t.Closing && !t.SelfClosing &&
			isBlankString(n.buf[t.End:]) {
			n.container = true
			pushJSX(pc, n)
			return parser.Continue | parser.HasChildren
		}
		return parser.Close
	}
	if !n.container {
		return parser.Close
	}

	trimmed := strings.TrimSpace(string(line))
	if trimmed == "</"+n.name+">" && innermostJSX(pc, n) {
		n.closeRaw = trimmed
		n.blankBefore = n.lastBlank
		n.closed = true
		reader.Advance(segment.Len() - 1)
		return parser.Close
	}
	if util.IsBlank(line) {
		n.lastBlank = true
		if !n.seenChild {
			n.blankFirst = true
		}
		return parser.Continue | parser.HasChildren
	}
	n.lastBlank = false
	if !n.seenChild {
		n.seenChild = true
		n.indent = leadingIndent(string(line))
	}
	if n.indent != "" && strings.HasPrefix(string(line), n.indent) {
		reader.Advance(len(n.indent))
	}
	return parser.Continue | parser.HasChildren
}

func (b *jsxBlockParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {
	n := node.(*jsxBlock)
	if n.container {
		popJSX(pc, n)
	}
	switch {
	case n.scanning && n.expression:
		n.err = fmt.Errorf("unterminated expression %q", firstLine(n.buf))
	case n.scanning:
		n.err = fmt.Errorf("unterminated tag %q", firstLine(n.buf))
	case n.container && !n.closed:
		n.err = fmt.Errorf("expected a closing tag for <%s>", n.name)
	}
}

func (b *jsxBlockParser) CanInterruptParagraph() bool {
	return true
}

func (b *jsxBlockParser) CanAcceptIndentedLine() bool {
	return false
}

func pushJSX(pc parser.Context, n *jsxBlock) {
	stack, _ := pc.Get(jsxStackKey).([]*jsxBlock)
	pc.Set(jsxStackKey, append(stack, n))
}

func popJSX(pc parser.Context, n *jsxBlock) {
	stack, _ := pc.Get(jsxStackKey).([]*jsxBlock)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == n {
			pc.Set(jsxStackKey, append(stack[:i:i], stack[i+1:]...))
			return
		}
	}
}

// innermostJSX reports whether n is the most recently opened container with its name.
func innermostJSX(pc parser.Context, n *jsxBlock) bool {
	stack, _ := pc.Get(jsxStackKey).([]*jsxBlock)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].name == n.name {
			return stack[i] == n
		}
	}
	return false
}

type jsxInlineParser struct{}

func (p *jsxInlineParser) Trigger() []byte {
	return []byte{'<'}
}

func (p *jsxInlineParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, segment := block.PeekLine()
	t, res := scanTag(string(line), 0)
	if res != scanComplete || t.Name == "" {
		return nil
	}
	if !isComponentName(t.Name) && !t.hasExprAttr() {
		return nil
	}
	n := &jsxInline{Segment: segment.WithStop(segment.Start + t.End)}
	block.Advance(t.End)
	return n
}

type jsxExtension struct{}

// Extend registers the embedded-tag parsers ahead of goldmark's HTML parsers.
func (jsxExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(util.Prioritized(&jsxBlockParser{}, 850)),
		parser.WithInlineParsers(util.Prioritized(&jsxInlineParser{}, 350)),
	)
}

func isBlankString(s string) bool {
	return strings.TrimSpace(s) == ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
