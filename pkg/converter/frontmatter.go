package converter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// UntitledTitle is used when a document offers no title at all.
const UntitledTitle = "Untitled"

// sourceMatter is the subset of Docusaurus frontmatter the migration reads.
// Every other field is dropped.
type sourceMatter struct {
	SidebarLabel string         `yaml:"sidebar_label" toml:"sidebar_label" json:"sidebar_label"`
	Title        string         `yaml:"title" toml:"title" json:"title"`
	Extra        map[string]any `yaml:",inline" toml:"-" json:"-"`
}

// splitFrontmatter separates a leading frontmatter block from the body.
// Documents without one return the input unchanged.
func splitFrontmatter(text string) (sourceMatter, string, error) {
	var meta sourceMatter
	body, err := frontmatter.Parse(strings.NewReader(text), &meta)
	if err != nil {
		return sourceMatter{}, "", fmt.Errorf("%w: frontmatter: %w", ErrParse, err)
	}
	meta.SidebarLabel = strings.TrimSpace(meta.SidebarLabel)
	meta.Title = strings.TrimSpace(meta.Title)
	return meta, strings.TrimLeft(string(body), "\r\n"), nil
}

// droppedFields lists the source frontmatter keys that are not carried over.
func (m sourceMatter) droppedFields() []string {
	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// deriveTitle applies the precedence sidebar label, title, first H1, then
// UntitledTitle.
func deriveTitle(meta sourceMatter, heading string) string {
	for _, t := range []string{meta.SidebarLabel, meta.Title, strings.TrimSpace(heading)} {
		if t != "" {
			return t
		}
	}
	return UntitledTitle
}

type readmeMetadata struct {
	Robots string `yaml:"robots"`
}

// readmeMatter is the fixed frontmatter written to every output file.
type readmeMatter struct {
	Title      string         `yaml:"title"`
	Deprecated bool           `yaml:"deprecated"`
	Hidden     bool           `yaml:"hidden"`
	Metadata   readmeMetadata `yaml:"metadata"`
}

// renderDocument wraps body in freshly built frontmatter.
func renderDocument(title, body string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(readmeMatter{Title: title, Metadata: readmeMetadata{Robots: "index"}})
	if err == nil {
		err = enc.Close()
	}
	if err != nil {
		return "", fmt.Errorf("%w: frontmatter: %w", ErrRender, err)
	}
	buf.WriteString("---\n\n")
	buf.WriteString(body)
	return buf.String(), nil
}
