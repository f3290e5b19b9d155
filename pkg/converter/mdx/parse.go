package mdx

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// ErrParse is returned when embedded syntax cannot be parsed.
var ErrParse = errors.New("mdx parse failed")

var markdown = goldmark.New(goldmark.WithExtensions(jsxExtension{}))

// Parse builds a Document from a Markdown/MDX body (without frontmatter).
func Parse(src []byte) (*Document, error) {
	pc := parser.NewContext()
	root := markdown.Parser().Parse(text.NewReader(src), parser.WithContext(pc))
	b := builder{src: src}
	doc := &Document{Blocks: b.blocks(root)}
	if b.err != nil {
		return nil, b.err
	}
	return doc, nil
}

type builder struct {
	src []byte
	err error
}

func (b *builder) fail(n ast.Node, err error) {
	if b.err != nil {
		return
	}
	line := 0
	if lines := n.Lines(); lines != nil && lines.Len() > 0 {
		line = bytes.Count(b.src[:lines.At(0).Start], []byte{'\n'}) + 1
	}
	b.err = fmt.Errorf("%w: line %d: %w", ErrParse, line, err)
}

func (b *builder) blocks(parent ast.Node) []Block {
	var out []Block
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		if blk := b.block(c); blk != nil {
			out = append(out, blk)
		}
	}
	return out
}

func (b *builder) lines(n ast.Node) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(b.src))
	}
	return sb.String()
}

func (b *builder) block(n ast.Node) Block {
	switch v := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		inl := b.inlines(v)
		if len(inl) == 0 {
			// Link reference definitions leave an empty paragraph behind.
			return nil
		}
		return &Paragraph{Inlines: inl}
	case *ast.Heading:
		return &Heading{Level: v.Level, Inlines: b.inlines(v)}
	case *ast.ThematicBreak:
		return &ThematicBreak{}
	case *ast.FencedCodeBlock:
		cb := &CodeBlock{Text: b.lines(v)}
		if v.Info != nil {
			cb.Info = strings.TrimSpace(string(v.Info.Segment.Value(b.src)))
		}
		return cb
	case *ast.CodeBlock:
		return &CodeBlock{Text: b.lines(v)}
	case *ast.Blockquote:
		return &Blockquote{Blocks: b.blocks(v)}
	case *ast.List:
		l := &List{Ordered: v.IsOrdered(), Start: v.Start, Tight: v.IsTight}
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			l.Items = append(l.Items, &ListItem{Blocks: b.blocks(c)})
		}
		return l
	case *ast.HTMLBlock:
		raw := b.lines(v)
		if v.HasClosure() {
			raw += string(v.ClosureLine.Value(b.src))
		}
		return &HTML{Raw: strings.TrimRight(raw, "\n")}
	case *jsxBlock:
		return b.jsxBlock(v)
	}
	if n.Lines() != nil && n.Lines().Len() > 0 {
		return &Paragraph{Inlines: []Inline{&Text{Value: strings.TrimRight(b.lines(n), "\n")}}}
	}
	return nil
}

func (b *builder) jsxBlock(v *jsxBlock) Block {
	if v.err != nil {
		b.fail(v, v.err)
		return nil
	}
	raw := strings.TrimRight(b.lines(v), "\n")
	raw = strings.TrimLeft(raw, " \t")
	if v.expression {
		return &Expression{Raw: raw}
	}
	t, _ := scanTag(raw, 0)
	if !isComponentName(t.Name) {
		return &HTML{Raw: raw}
	}
	c := &Component{
		Name:        t.Name,
		Attrs:       t.Attrs,
		Raw:         raw,
		SelfClosing: t.SelfClosing,
		Closing:     t.Closing,
	}
	if v.container {
		c.Container = true
		c.Indent = v.indent
		c.Children = b.blocks(v)
		c.CloseRaw = v.closeRaw
		c.Tight = !v.blankFirst && !v.blankBefore
	}
	return c
}

func (b *builder) inlines(parent ast.Node) []Inline {
	var out []Inline
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, b.inline(c)...)
	}
	return mergeText(out)
}

func (b *builder) inline(n ast.Node) []Inline {
	switch v := n.(type) {
	case *ast.Text:
		out := []Inline{&Text{Value: string(v.Segment.Value(b.src))}}
		if v.HardLineBreak() {
			out = append(out, &LineBreak{Hard: true})
		} else if v.SoftLineBreak() {
			out = append(out, &LineBreak{})
		}
		return out
	case *ast.String:
		return []Inline{&Text{Value: string(v.Value)}}
	case *ast.CodeSpan:
		var sb strings.Builder
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				sb.Write(t.Segment.Value(b.src))
			} else if s, ok := c.(*ast.String); ok {
				sb.Write(s.Value)
			}
		}
		return []Inline{&CodeSpan{Code: sb.String()}}
	case *ast.Emphasis:
		return []Inline{&Emphasis{Level: v.Level, Inlines: b.inlines(v)}}
	case *ast.Link:
		return []Inline{&Link{URL: string(v.Destination), Title: string(v.Title), Inlines: b.inlines(v)}}
	case *ast.Image:
		return []Inline{&Image{URL: string(v.Destination), Title: string(v.Title), Alt: b.inlines(v)}}
	case *ast.AutoLink:
		return []Inline{&Link{URL: string(v.Label(b.src)), Autolink: true}}
	case *ast.RawHTML:
		var sb strings.Builder
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			sb.Write(seg.Value(b.src))
		}
		return []Inline{&HTML{Raw: sb.String()}}
	case *jsxInline:
		raw := string(v.Segment.Value(b.src))
		t, _ := scanTag(raw, 0)
		if !isComponentName(t.Name) {
			return []Inline{&HTML{Raw: raw}}
		}
		return []Inline{&Component{
			Name:        t.Name,
			Attrs:       t.Attrs,
			Raw:         raw,
			SelfClosing: t.SelfClosing,
			Closing:     t.Closing,
		}}
	}
	return b.inlines(n)
}

// mergeText joins adjacent text nodes.
func mergeText(in []Inline) []Inline {
	out := in[:0:0]
	for _, n := range in {
		if t, ok := n.(*Text); ok && len(out) > 0 {
			if prev, ok := out[len(out)-1].(*Text); ok {
				out[len(out)-1] = &Text{Value: prev.Value + t.Value}
				continue
			}
		}
		out = append(out, n)
	}
	return out
}
