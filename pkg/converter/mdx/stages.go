package mdx

import (
	"regexp"
	"strings"
)

// PlaceholderPrefix and PlaceholderSuffix delimit the marker that stands in
// for an image component until images are resolved.
const (
	PlaceholderPrefix = "{/* image-placeholder: "
	PlaceholderSuffix = " */}"
)

// ScriptRemovedMarker replaces every removed script block.
const ScriptRemovedMarker = "{/* script removed */}"

const handlerSnippetLen = 80

// Placeholder returns the image marker for path.
func Placeholder(path string) string {
	return PlaceholderPrefix + path + PlaceholderSuffix
}

// LanguageDetector guesses the language of an unlabeled code block.
type LanguageDetector interface {
	Detect(content []byte, filePath string) (language string, confidence float64, err error)
}

// Options configures Rewrite.
type Options struct {
	// ImageComponent is the zoomable image component replaced by a placeholder.
	ImageComponent string
	// ImageAttr is the attribute holding the image source.
	ImageAttr string
	// ImageHelpers are call expressions wrapping a literal path, e.g. require("./a.png").
	ImageHelpers []string
	// TargetComponents are the destination platform's own components. They
	// are kept verbatim and are not reported as removed.
	TargetComponents []string
	// Keep decides whether raw markup is left untouched by HTML lowering.
	// Nil uses DefaultKeep(TargetComponents).
	Keep func(raw string) bool
	// Detector, when set, labels fenced code blocks that have no language.
	Detector LanguageDetector
	// MinConfidence is the detector score needed to label a code block.
	MinConfidence float64
}

// DefaultOptions returns the Docusaurus → ReadMe configuration.
func DefaultOptions() Options {
	return Options{
		ImageComponent: "ImageZoom",
		ImageAttr:      "src",
		ImageHelpers:   []string{"require", "useBaseUrl"},
		TargetComponents: []string{
			"Callout", "Tabs", "Tab", "Cards", "Card", "Columns", "Column",
			"Accordion", "Embed", "Image", "Glossary", "Anchor",
		},
		MinConfidence: 0.5,
	}
}

// Log records what the rewrite stages found and removed from one document.
type Log struct {
	// Images holds image references in document order, duplicates included.
	Images []string
	// Components holds an approximation of each embedded component tag.
	Components []string
	// Scripts holds script and event handler removals.
	Scripts []string
	// StrippedHTML holds raw markup that was lowered to Markdown.
	StrippedHTML []string
	// Unlowered holds raw markup that neither matched Keep nor any lowering rule.
	Unlowered []string
	// EmptyImages counts image components whose source could not be read.
	EmptyImages int
}

// Rewrite applies the rewrite stages to doc in their fixed order and returns
// the resulting tree. doc itself is not modified.
func Rewrite(doc *Document, opts Options) (*Document, *Log) {
	log := &Log{}
	if opts.Keep == nil {
		opts.Keep = DefaultKeep(opts.TargetComponents)
	}
	doc = replaceImageComponents(doc, opts, log)
	collectImages(doc, log)
	collectComponents(doc, opts, log)
	doc = normalizeDeclarations(doc)
	doc = stripScripts(doc, log)
	doc = lowerHTML(doc, opts.Keep, log)
	if opts.Detector != nil {
		doc = annotateCode(doc, opts.Detector, opts.MinConfidence)
	}
	return doc, log
}

func helperPattern(helpers []string) *regexp.Regexp {
	quoted := make([]string, len(helpers))
	for i, h := range helpers {
		quoted[i] = regexp.QuoteMeta(h)
	}
	return regexp.MustCompile(`(?s)^\s*(?:(?:` + strings.Join(quoted, "|") + `)\s*\(\s*)?["'` + "`" + `]([^"'` + "`" + `]*)["'` + "`" + `]`)
}

// imageSource extracts the path from a literal or helper-call attribute value.
func imageSource(c *Component, attr string, helper *regexp.Regexp) string {
	for _, a := range c.Attrs {
		if a.Name != attr {
			continue
		}
		if !a.Expr {
			return strings.TrimSpace(a.Value)
		}
		if m := helper.FindStringSubmatch(a.Value); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// Stage 1: image components become placeholder text.
func replaceImageComponents(doc *Document, opts Options, log *Log) *Document {
	helper := helperPattern(opts.ImageHelpers)
	marker := func(c *Component) string {
		path := imageSource(c, opts.ImageAttr, helper)
		if path == "" {
			log.EmptyImages++
		} else {
			log.Images = append(log.Images, path)
		}
		return Placeholder(path)
	}
	isImage := func(n Node) (*Component, bool) {
		c, ok := n.(*Component)
		return c, ok && c.Name == opts.ImageComponent && !c.Closing
	}
	return mapper{
		block: func(b Block) []Block {
			if c, ok := isImage(b); ok {
				return []Block{&Paragraph{Inlines: []Inline{&Text{Value: marker(c)}}}}
			}
			return []Block{b}
		},
		inline: func(n Inline) []Inline {
			if c, ok := isImage(n); ok {
				return []Inline{&Text{Value: marker(c)}}
			}
			if c, ok := n.(*Component); ok && c.Name == opts.ImageComponent && c.Closing {
				return nil
			}
			return []Inline{n}
		},
	}.document(doc)
}

// Stage 2: native image URLs.
func collectImages(doc *Document, log *Log) {
	Walk(doc, func(n Node) bool {
		if img, ok := n.(*Image); ok {
			if u := strings.TrimSpace(img.URL); u != "" {
				log.Images = append(log.Images, u)
			}
		}
		return true
	})
}

// Stage 3: embedded components are reported, not changed. The target
// platform's components and tab items, which the tabs pass converts, are not
// reported.
func collectComponents(doc *Document, opts Options, log *Log) {
	target := make(map[string]bool, len(opts.TargetComponents))
	for _, name := range opts.TargetComponents {
		target[name] = true
	}
	Walk(doc, func(n Node) bool {
		c, ok := n.(*Component)
		if !ok || c.Closing || !isComponentName(c.Name) || target[c.Name] || c.Name == tabItemName {
			return true
		}
		log.Components = append(log.Components, describeComponent(c))
		return true
	})
}

func describeComponent(c *Component) string {
	var sb strings.Builder
	sb.WriteString("<" + c.Name)
	for _, a := range c.Attrs {
		sb.WriteByte(' ')
		switch {
		case a.Name == "":
			sb.WriteString("{" + a.Value + "}")
		case a.Expr:
			sb.WriteString(a.Name + "={" + a.Value + "}")
		case a.Bare && a.Value == "":
			sb.WriteString(a.Name)
		default:
			sb.WriteString(a.Name + `="` + a.Value + `"`)
		}
	}
	if !c.SelfClosing {
		sb.WriteString(" …")
	}
	sb.WriteString("/>")
	return sb.String()
}

var commentPattern = regexp.MustCompile(`(?s)^<!--(.*?)-->$`)

// Stage 4: HTML comments become expression comments, declarations are escaped.
func normalizeDeclarations(doc *Document) *Document {
	convert := func(h *HTML) Node {
		if h.Opaque {
			return h
		}
		raw := strings.TrimSpace(h.Raw)
		if m := commentPattern.FindStringSubmatch(raw); m != nil && !strings.Contains(m[1], "-->") {
			return &Expression{Raw: "{/*" + strings.ReplaceAll(m[1], "*/", "* /") + "*/}"}
		}
		if strings.HasPrefix(raw, "<!") {
			return &HTML{Raw: "&lt;" + strings.TrimPrefix(strings.TrimLeft(h.Raw, " \t"), "<")}
		}
		return h
	}
	return mapper{
		block: func(b Block) []Block {
			if h, ok := b.(*HTML); ok {
				return []Block{convert(h).(Block)}
			}
			return []Block{b}
		},
		inline: func(n Inline) []Inline {
			if h, ok := n.(*HTML); ok {
				return []Inline{convert(h).(Inline)}
			}
			return []Inline{n}
		},
	}.document(doc)
}
