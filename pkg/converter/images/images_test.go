package images_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/images"
	"github.com/jmadden/readme-docs-migration-github/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var discard = slog.NewTextHandler(io.Discard, nil)

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("data:"+f), 0o644))
	}
}

func buildIndex(t *testing.T, files ...string) (*images.Index, string) {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files...)
	ix, err := images.BuildIndex(context.Background(), root, nil, discard)
	require.NoError(t, err)
	return ix, root
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, localPath string) (string, error) {
	args := m.Called(localPath)
	return args.String(0), args.Error(1)
}

type uploaderFunc func(ctx context.Context, localPath string) (string, error)

func (f uploaderFunc) Upload(ctx context.Context, localPath string) (string, error) {
	return f(ctx, localPath)
}

func TestBuildIndex(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"static/img/logo.png",
		"static/img/anim.gif",
		"static/img/notes.txt",
		"static/Photo.JPG",
		"drafts/wip.png",
	)
	ignore, err := util.NewIgnoreMatcher(root, "", []string{"drafts/", "*.gif"})
	require.NoError(t, err)

	ix, err := images.BuildIndex(context.Background(), root, ignore, discard)
	require.NoError(t, err)

	assert.Equal(t, 2, ix.Len())
	p, ok := ix.Lookup("static/img/logo.png")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(ix.Root, "static", "img", "logo.png"), p)
	assert.Equal(t, "static/img/logo.png", ix.Rel(p))
	assert.Len(t, ix.Candidates("Photo.JPG"), 1)
	assert.Empty(t, ix.Candidates("wip.png"))
}

func TestBuildIndex_MissingRoot(t *testing.T) {
	_, err := images.BuildIndex(context.Background(), filepath.Join(t.TempDir(), "absent"), nil, discard)
	assert.ErrorIs(t, err, images.ErrIndex)
}

func TestBuildIndex_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := images.BuildIndex(ctx, root, nil, discard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolver(t *testing.T) {
	ix, root := buildIndex(t,
		"static/img/logo.png",
		"docs/a/diagram.png",
		"docs/b/diagram.png",
	)
	abs := func(rel string) string { return filepath.Join(ix.Root, filepath.FromSlash(rel)) }
	require.NotEmpty(t, root)

	testCases := []struct {
		ref      string
		expected string
		tier     images.Tier
	}{
		{"/static/img/logo.png", "static/img/logo.png", images.TierExact},
		{"./static/img/logo.png?raw=true#top", "static/img/logo.png", images.TierExact},
		{"../../static/img/logo.png", "static/img/logo.png", images.TierSuffix},
		{"/img/logo.png", "static/img/logo.png", images.TierBasename},
		{"b/diagram.png", "docs/b/diagram.png", images.TierBasename},
		{"diagram.png", "docs/a/diagram.png", images.TierBasename},
	}
	r := images.NewResolver(ix, nil)
	for _, tc := range testCases {
		t.Run(tc.ref, func(t *testing.T) {
			p, tier, ok := r.Resolve(tc.ref)
			require.True(t, ok)
			assert.Equal(t, abs(tc.expected), p)
			assert.Equal(t, tc.tier, tier)
		})
	}

	for _, ref := range []string{"missing.png", "https://cdn.example.com/logo.png", "data:image/png;base64,AAA", "//cdn/logo.png", "", "/"} {
		_, tier, ok := r.Resolve(ref)
		assert.False(t, ok, ref)
		assert.Equal(t, images.TierNone, tier, ref)
	}
}

func TestResolver_CustomSimilarity(t *testing.T) {
	ix, _ := buildIndex(t, "docs/a/diagram.png", "docs/b/diagram.png")
	preferB := func(a, _ string) int {
		if strings.Contains(a, "/b/") {
			return 1
		}
		return 0
	}
	p, _, ok := images.NewResolver(ix, preferB).Resolve("diagram.png")
	require.True(t, ok)
	assert.Equal(t, "docs/b/diagram.png", ix.Rel(p))
}

func TestCommonSuffix(t *testing.T) {
	assert.Equal(t, 13, images.CommonSuffix("docs/b/diagram.png", "b/diagram.png"))
	assert.Equal(t, 12, images.CommonSuffix("docs/a/diagram.png", "b/diagram.png"))
	assert.Equal(t, 0, images.CommonSuffix("a.png", "a.jpg"))
	assert.Equal(t, 0, images.CommonSuffix("", "x"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "img/a b.png", images.Normalize(" /./img/a%20b.png?x=1 "))
	assert.Equal(t, "img/a.png", images.Normalize("img//a.png"))
	assert.Equal(t, "", images.Normalize("/"))
}

func TestResolveAndUpload(t *testing.T) {
	ix, _ := buildIndex(t, "static/img/logo.png")
	local := filepath.Join(ix.Root, "static", "img", "logo.png")
	up := &mockUploader{}
	up.On("Upload", local).Return("https://cdn/logo.png", nil).Twice()

	refs := []string{"/img/logo.png", "/img/logo.png", "https://remote/x.png", "", "nope.png", "static/img/logo.png"}
	out := images.ResolveAndUpload(context.Background(), refs, images.NewResolver(ix, nil), up)

	assert.Equal(t, []images.Uploaded{
		{Ref: "/img/logo.png", Local: local, URL: "https://cdn/logo.png"},
		{Ref: "static/img/logo.png", Local: local, URL: "https://cdn/logo.png"},
	}, out.Uploaded)
	assert.Equal(t, []string{"nope.png"}, out.Missing)
	assert.Empty(t, out.Failed)
	assert.Equal(t, []images.Pair{
		{Ref: "/img/logo.png", URL: "https://cdn/logo.png"},
		{Ref: "static/img/logo.png", URL: "https://cdn/logo.png"},
	}, out.Pairs())
	up.AssertExpectations(t)
}

func TestResolveAndUpload_Failure(t *testing.T) {
	ix, _ := buildIndex(t, "a.png")
	up := &mockUploader{}
	up.On("Upload", mock.Anything).Return("", images.ErrUpload)

	out := images.ResolveAndUpload(context.Background(), []string{"a.png"}, images.NewResolver(ix, nil), up)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, "a.png", out.Failed[0].Ref)
	assert.ErrorIs(t, out.Failed[0].Err, images.ErrUpload)
	assert.Empty(t, out.Uploaded)
}
