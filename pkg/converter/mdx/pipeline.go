package mdx

// Result is the outcome of Transform for one document body.
type Result struct {
	// Text is the serialized body after the tabs pass.
	Text string
	// Heading is the text of the first level-1 heading, if any.
	Heading string
	Log     *Log
}

// Transform runs the admonition pre-pass, parses the body, applies the
// rewrite stages, serializes the tree and converts tab blocks.
func Transform(body string, opts Options) (Result, error) {
	doc, err := Parse([]byte(ConvertAdmonitions(body)))
	if err != nil {
		return Result{}, err
	}
	doc, log := Rewrite(doc, opts)
	return Result{
		Text:    ConvertTabs(Render(doc)),
		Heading: FirstHeading(doc, 1),
		Log:     log,
	}, nil
}

// FirstHeading returns the plain text of the first heading of the given level.
func FirstHeading(doc *Document, level int) string {
	var title string
	Walk(doc, func(n Node) bool {
		if title != "" {
			return false
		}
		if h, ok := n.(*Heading); ok && h.Level == level {
			title = PlainText(h)
			return false
		}
		return true
	})
	return title
}
