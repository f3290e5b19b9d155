package mdx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanBalanced(t *testing.T) {
	span, end := scanBalanced("x{a{b}c}y", 1)
	assert.Equal(t, "{a{b}c}", span)
	assert.Equal(t, 7, end)

	span, end = scanBalanced("{a{b}", 0)
	assert.Empty(t, span)
	assert.Equal(t, -1, end)

	_, end = scanBalanced("abc", 0)
	assert.Equal(t, -1, end)
}

func TestScanTag(t *testing.T) {
	t.Run("component with expression attributes", func(t *testing.T) {
		src := `<Tabs groupId="os" values={[{label: <b>A</b>, value: 'a'}]} lazy>rest`
		tg, res := scanTag(src, 0)
		require.Equal(t, scanComplete, res)
		assert.Equal(t, "Tabs", tg.Name)
		require.Len(t, tg.Attrs, 3)
		assert.Equal(t, Attr{Name: "groupId", Value: "os"}, tg.Attrs[0])
		assert.Equal(t, "values", tg.Attrs[1].Name)
		assert.True(t, tg.Attrs[1].Expr)
		assert.Equal(t, "[{label: <b>A</b>, value: 'a'}]", tg.Attrs[1].Value)
		assert.Equal(t, "lazy", tg.Attrs[2].Name)
		assert.Equal(t, "rest", src[tg.End:])
	})

	t.Run("self closing", func(t *testing.T) {
		tg, res := scanTag(`<ImageZoom src={require('./a.png')} />`, 0)
		require.Equal(t, scanComplete, res)
		assert.True(t, tg.SelfClosing)
		assert.Equal(t, "require('./a.png')", tg.Attrs[0].Value)
	})

	t.Run("closing tag", func(t *testing.T) {
		tg, res := scanTag(`</TabItem>`, 0)
		require.Equal(t, scanComplete, res)
		assert.True(t, tg.Closing)
		assert.Equal(t, "TabItem", tg.Name)
	})

	t.Run("incomplete across lines", func(t *testing.T) {
		_, res := scanTag("<Tabs\n  values={[\n", 0)
		assert.Equal(t, scanIncomplete, res)
	})

	t.Run("not a tag", func(t *testing.T) {
		for _, src := range []string{"< 3", "<3", "<http://example.com>", "<a@b.com>"} {
			_, res := scanTag(src, 0)
			assert.Equal(t, scanNotTag, res, src)
		}
	})
}
