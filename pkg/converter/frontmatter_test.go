package converter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFrontmatter(t *testing.T) {
	meta, body, err := splitFrontmatter("---\nsidebar_label: \" Guide \"\ntitle: Long Title\nsidebar_position: 3\nslug: /guide\n---\n\n# Intro\n")
	require.NoError(t, err)
	assert.Equal(t, "Guide", meta.SidebarLabel)
	assert.Equal(t, "Long Title", meta.Title)
	assert.Equal(t, []string{"sidebar_position", "slug"}, meta.droppedFields())
	assert.Equal(t, "# Intro\n", body)
}

func TestSplitFrontmatter_NoBlock(t *testing.T) {
	meta, body, err := splitFrontmatter("# Intro\n\nHello.\n")
	require.NoError(t, err)
	assert.Empty(t, meta.SidebarLabel)
	assert.Empty(t, meta.Title)
	assert.Empty(t, meta.droppedFields())
	assert.Equal(t, "# Intro\n\nHello.\n", body)
}

func TestSplitFrontmatter_Malformed(t *testing.T) {
	_, _, err := splitFrontmatter("---\ntitle: [unclosed\n---\nbody\n")
	assert.ErrorIs(t, err, ErrParse)
}

func TestDeriveTitle(t *testing.T) {
	testCases := []struct {
		name    string
		meta    sourceMatter
		heading string
		want    string
	}{
		{name: "sidebar label wins", meta: sourceMatter{SidebarLabel: "Label", Title: "Title"}, heading: "Heading", want: "Label"},
		{name: "title before heading", meta: sourceMatter{Title: "Title"}, heading: "Heading", want: "Title"},
		{name: "heading", heading: "  Heading ", want: "Heading"},
		{name: "untitled", want: UntitledTitle},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, deriveTitle(tc.meta, tc.heading))
		})
	}
}

func TestRenderDocument(t *testing.T) {
	out, err := renderDocument("Guide", "# Intro\n\nHello.\n")
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Guide\ndeprecated: false\nhidden: false\nmetadata:\n  robots: index\n---\n\n# Intro\n\nHello.\n", out)
}

func TestRenderDocument_QuotesTitle(t *testing.T) {
	out, err := renderDocument("Setup: Part 1", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Setup: Part 1")
	assert.NotContains(t, out, "title: Setup: Part 1\n")
	assert.True(t, strings.HasSuffix(out, "---\n\n"))
}
