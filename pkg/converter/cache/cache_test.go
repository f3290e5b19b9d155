package cache_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, format string) (cache.Store, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return cache.NewFileStore(h, "test", format), buf
}

func TestStore_PersistAndLoad(t *testing.T) {
	for _, format := range []string{cache.FormatGob, cache.FormatJSON} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", cache.FileName)
			s, _ := newStore(t, format)
			s.Record("/img/a.png", "h1", "readme", "https://files.example.com/a.png")
			require.NoError(t, s.Persist(path))

			loaded, _ := newStore(t, format)
			require.NoError(t, loaded.Load(path))
			assert.Equal(t, 1, loaded.Len())
			url, ok := loaded.Lookup("/img/a.png", "h1", "readme")
			assert.True(t, ok)
			assert.Equal(t, "https://files.example.com/a.png", url)

			matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp-*"))
			require.NoError(t, err)
			assert.Empty(t, matches)
		})
	}
}

func TestStore_LookupStaleEntries(t *testing.T) {
	s, _ := newStore(t, "")
	s.Record("/img/a.png", "h1", "readme", "https://u/a.png")

	_, ok := s.Lookup("/img/a.png", "h2", "readme")
	assert.False(t, ok, "content changed")
	_, ok = s.Lookup("/img/a.png", "h1", "s3://bucket")
	assert.False(t, ok, "target changed")
	_, ok = s.Lookup("/img/b.png", "h1", "readme")
	assert.False(t, ok, "unknown path")
}

func TestStore_LoadTolerance(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		s, _ := newStore(t, cache.FormatJSON)
		require.NoError(t, s.Load(filepath.Join(dir, "absent")))
		assert.Zero(t, s.Len())
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		s, logs := newStore(t, cache.FormatJSON)
		require.NoError(t, s.Load(path))
		assert.Zero(t, s.Len())
		assert.Contains(t, logs.String(), "could not be decoded")
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty")
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		s, logs := newStore(t, cache.FormatGob)
		require.NoError(t, s.Load(path))
		assert.Contains(t, logs.String(), "empty or truncated")
	})

	t.Run("schema mismatch", func(t *testing.T) {
		path := filepath.Join(dir, "old")
		body := `{"header":{"schemaVersion":"0","toolVersion":"x"},"entries":{"/a.png":{"url":"u","contentHash":"h","target":"t"}}}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		s, logs := newStore(t, cache.FormatJSON)
		require.NoError(t, s.Load(path))
		assert.Zero(t, s.Len())
		assert.Contains(t, logs.String(), "schema mismatch")
	})

	t.Run("unreadable path", func(t *testing.T) {
		s, _ := newStore(t, cache.FormatJSON)
		err := s.Load(dir + string(os.PathSeparator) + "\x00")
		assert.ErrorIs(t, err, cache.ErrCacheLoad)
	})
}

func TestStore_ConcurrentRecord(t *testing.T) {
	s, _ := newStore(t, cache.FormatJSON)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := filepath.Join("/img", string(rune('a'+i%26))+".png")
			s.Record(p, "h", "t", "u")
			s.Lookup(p, "h", "t")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, s.Len())
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))
	sum, err := cache.HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)

	_, err = cache.HashFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
