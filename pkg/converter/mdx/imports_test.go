package mdx_test

import (
	"testing"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/mdx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripImports(t *testing.T) {
	src := "import Tabs from '@theme/Tabs';\n" +
		"import TabItem from \"@theme/TabItem\"\n" +
		"import './styles.css';\n" +
		"import {\n  a,\n  b,\n} from 'lib';\n" +
		"\n# Title\n\nWe import data from files.\n"

	out, removed := mdx.StripImports(src)

	assert.Equal(t, "# Title\n\nWe import data from files.\n", out)
	assert.Equal(t, []string{
		"import Tabs from '@theme/Tabs';",
		"import TabItem from \"@theme/TabItem\"",
		"import './styles.css';",
		"import {\n  a,\n  b,\n} from 'lib';",
	}, removed)
}

func TestStripImports_NoImports(t *testing.T) {
	src := "# Title\n\n\n\nBody\n"
	out, removed := mdx.StripImports(src)
	assert.Equal(t, src, out)
	assert.Nil(t, removed)
}

func TestStripImports_CollapsesBlankRuns(t *testing.T) {
	out, _ := mdx.StripImports("Intro\n\nimport X from 'x';\n\n\nBody\n")
	assert.Equal(t, "Intro\n\nBody\n", out)
}

func TestStripImports_LeavesCodeFencesAlone(t *testing.T) {
	src := "import Tabs from '@theme/Tabs';\n\n# Use\n\n" +
		"```jsx\nimport React from 'react';\n\n\n\nexport default () => <div/>;\n```\n\n" +
		"   ~~~~js\n   import x from 'x';\n   ~~~~\n\n" +
		"import Tail from './tail';\n"

	out, removed := mdx.StripImports(src)

	assert.Equal(t, "# Use\n\n"+
		"```jsx\nimport React from 'react';\n\n\n\nexport default () => <div/>;\n```\n\n"+
		"   ~~~~js\n   import x from 'x';\n   ~~~~\n\n", out)
	assert.Equal(t, []string{"import Tabs from '@theme/Tabs';", "import Tail from './tail';"}, removed)
}

func TestStripImports_UnclosedFence(t *testing.T) {
	src := "```js\nimport a from 'a';\n"
	out, removed := mdx.StripImports(src)
	assert.Equal(t, src, out)
	assert.Nil(t, removed)
}

func TestStripImports_AfterTransform(t *testing.T) {
	res, err := mdx.Transform("import Tabs from '@theme/Tabs';\n\n# Use\n\n```jsx\nimport React from 'react';\nexport default () => <div/>;\n```\n", mdx.DefaultOptions())
	require.NoError(t, err)

	out, removed := mdx.StripImports(res.Text)
	assert.Equal(t, "# Use\n\n```jsx\nimport React from 'react';\nexport default () => <div/>;\n```\n", out)
	assert.Equal(t, []string{"import Tabs from '@theme/Tabs';"}, removed)
}
