// Package mdx parses Docusaurus-flavoured Markdown/MDX into a small tree,
// rewrites that tree for ReadMe's dialect and renders it back to text.
package mdx

// Node is a closed set of tree variants. Only types in this package implement it.
type Node interface {
	node()
}

// Block is a node that may appear in a block list.
type Block interface {
	Node
	block()
}

// Inline is a node that may appear inside a paragraph or heading.
type Inline interface {
	Node
	inline()
}

// Document is the root of a parsed body.
type Document struct {
	Blocks []Block
}

// Paragraph holds inline content.
type Paragraph struct {
	Inlines []Inline
}

// Heading is an ATX or setext heading.
type Heading struct {
	Level   int
	Inlines []Inline
}

// List is an ordered or bullet list.
type List struct {
	Ordered bool
	Start   int
	Tight   bool
	Items   []*ListItem
}

// ListItem holds the blocks of one list entry.
type ListItem struct {
	Blocks []Block
}

// Blockquote holds quoted blocks.
type Blockquote struct {
	Blocks []Block
}

// CodeBlock is a fenced or indented code block. Text keeps its trailing newline.
type CodeBlock struct {
	Info string
	Text string
}

// ThematicBreak is a horizontal rule.
type ThematicBreak struct{}

// HTML is raw markup kept verbatim. Opaque nodes are never transformed again.
type HTML struct {
	Raw    string
	Opaque bool
}

// Attr is a single attribute of an embedded component.
// Expr is true when the value was written as a {...} expression.
type Attr struct {
	Name  string
	Value string
	Expr  bool
	Bare  bool
}

// Component is an embedded (capitalized) component.
//
// Raw is the opening tag as written. Containers (non self-closing tags
// written on their own line) own the blocks up to the matching closing tag;
// Indent is the common indentation of those blocks in the source.
type Component struct {
	Name        string
	Attrs       []Attr
	Raw         string
	SelfClosing bool
	Closing     bool
	Container   bool
	Indent      string
	Children    []Block
	CloseRaw    string
	// Tight containers had no blank line between the tags and their children.
	Tight bool
}

// Expression is an embedded expression such as {/* comment */}.
type Expression struct {
	Raw string
}

// Text is literal inline content, emitted exactly as stored.
type Text struct {
	Value string
}

// Emphasis is *x* (Level 1) or **x** (Level 2).
type Emphasis struct {
	Level   int
	Inlines []Inline
}

// Image is a native Markdown image.
type Image struct {
	URL   string
	Title string
	Alt   []Inline
}

// Link is a native Markdown link or autolink.
type Link struct {
	URL      string
	Title    string
	Inlines  []Inline
	Autolink bool
}

// CodeSpan is `code`.
type CodeSpan struct {
	Code string
}

// LineBreak is a soft or hard line break.
type LineBreak struct {
	Hard bool
}

func (*Document) node()      {}
func (*Paragraph) node()     {}
func (*Heading) node()       {}
func (*List) node()          {}
func (*ListItem) node()      {}
func (*Blockquote) node()    {}
func (*CodeBlock) node()     {}
func (*ThematicBreak) node() {}
func (*HTML) node()          {}
func (*Component) node()     {}
func (*Expression) node()    {}
func (*Text) node()          {}
func (*Emphasis) node()      {}
func (*Image) node()         {}
func (*Link) node()          {}
func (*CodeSpan) node()      {}
func (*LineBreak) node()     {}

func (*Paragraph) block()     {}
func (*Heading) block()       {}
func (*List) block()          {}
func (*Blockquote) block()    {}
func (*CodeBlock) block()     {}
func (*ThematicBreak) block() {}
func (*HTML) block()          {}
func (*Component) block()     {}
func (*Expression) block()    {}

func (*HTML) inline()       {}
func (*Component) inline()  {}
func (*Expression) inline() {}
func (*Text) inline()       {}
func (*Emphasis) inline()   {}
func (*Image) inline()      {}
func (*Link) inline()       {}
func (*CodeSpan) inline()   {}
func (*LineBreak) inline()  {}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the children of the node just visited.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch v := n.(type) {
	case *Document:
		for _, b := range v.Blocks {
			Walk(b, fn)
		}
	case *Paragraph:
		walkInlines(v.Inlines, fn)
	case *Heading:
		walkInlines(v.Inlines, fn)
	case *List:
		for _, it := range v.Items {
			Walk(it, fn)
		}
	case *ListItem:
		for _, b := range v.Blocks {
			Walk(b, fn)
		}
	case *Blockquote:
		for _, b := range v.Blocks {
			Walk(b, fn)
		}
	case *Component:
		for _, b := range v.Children {
			Walk(b, fn)
		}
	case *Emphasis:
		walkInlines(v.Inlines, fn)
	case *Image:
		walkInlines(v.Alt, fn)
	case *Link:
		walkInlines(v.Inlines, fn)
	case *CodeBlock, *ThematicBreak, *HTML, *Expression, *Text, *CodeSpan, *LineBreak:
	}
}

func walkInlines(list []Inline, fn func(Node) bool) {
	for _, in := range list {
		Walk(in, fn)
	}
}

// mapper rewrites nodes bottom-up into a fresh tree. Block and inline
// functions receive a node whose children were already rewritten and
// return its replacement list (nil removes it).
type mapper struct {
	block  func(Block) []Block
	inline func(Inline) []Inline
}

func (m mapper) document(d *Document) *Document {
	return &Document{Blocks: m.blocks(d.Blocks)}
}

func (m mapper) blocks(in []Block) []Block {
	out := make([]Block, 0, len(in))
	for _, b := range in {
		nb := m.copyBlock(b)
		if m.block != nil {
			out = append(out, m.block(nb)...)
		} else {
			out = append(out, nb)
		}
	}
	return out
}

func (m mapper) inlines(in []Inline) []Inline {
	out := make([]Inline, 0, len(in))
	for _, n := range in {
		nn := m.copyInline(n)
		if m.inline != nil {
			out = append(out, m.inline(nn)...)
		} else {
			out = append(out, nn)
		}
	}
	return out
}

func (m mapper) copyBlock(b Block) Block {
	switch v := b.(type) {
	case *Paragraph:
		return &Paragraph{Inlines: m.inlines(v.Inlines)}
	case *Heading:
		return &Heading{Level: v.Level, Inlines: m.inlines(v.Inlines)}
	case *List:
		items := make([]*ListItem, len(v.Items))
		for i, it := range v.Items {
			items[i] = &ListItem{Blocks: m.blocks(it.Blocks)}
		}
		return &List{Ordered: v.Ordered, Start: v.Start, Tight: v.Tight, Items: items}
	case *Blockquote:
		return &Blockquote{Blocks: m.blocks(v.Blocks)}
	case *Component:
		c := *v
		c.Attrs = append([]Attr(nil), v.Attrs...)
		c.Children = m.blocks(v.Children)
		return &c
	case *CodeBlock:
		c := *v
		return &c
	case *HTML:
		c := *v
		return &c
	case *Expression:
		c := *v
		return &c
	case *ThematicBreak:
		return &ThematicBreak{}
	}
	return b
}

func (m mapper) copyInline(n Inline) Inline {
	switch v := n.(type) {
	case *Emphasis:
		return &Emphasis{Level: v.Level, Inlines: m.inlines(v.Inlines)}
	case *Image:
		return &Image{URL: v.URL, Title: v.Title, Alt: m.inlines(v.Alt)}
	case *Link:
		return &Link{URL: v.URL, Title: v.Title, Autolink: v.Autolink, Inlines: m.inlines(v.Inlines)}
	case *Text:
		return &Text{Value: v.Value}
	case *CodeSpan:
		return &CodeSpan{Code: v.Code}
	case *LineBreak:
		return &LineBreak{Hard: v.Hard}
	case *HTML:
		c := *v
		return &c
	case *Component:
		c := *v
		c.Attrs = append([]Attr(nil), v.Attrs...)
		return &c
	case *Expression:
		c := *v
		return &c
	}
	return n
}
