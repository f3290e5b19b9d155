package images_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/cache"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachingUploader_CachesByPath(t *testing.T) {
	up := &mockUploader{}
	up.On("Upload", "/img/a.png").Return("https://cdn/a.png", nil).Once()

	c, err := images.NewCachingUploader(up, images.CachingOptions{}, discard)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		url, err := c.Upload(context.Background(), "/img/a.png")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/a.png", url)
	}
	up.AssertNumberOfCalls(t, "Upload", 1)
	assert.Equal(t, "default", c.Target())
}

func TestCachingUploader_RetriesWithBackoff(t *testing.T) {
	up := &mockUploader{}
	up.On("Upload", "/img/a.png").Return("", errors.New("connection reset")).Twice()
	up.On("Upload", "/img/a.png").Return("https://cdn/a.png", nil).Once()

	c, err := images.NewCachingUploader(up, images.CachingOptions{Retries: 2, Backoff: time.Millisecond}, discard)
	require.NoError(t, err)
	url, err := c.Upload(context.Background(), "/img/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.png", url)
	up.AssertNumberOfCalls(t, "Upload", 3)
}

func TestCachingUploader_FailureIsCached(t *testing.T) {
	up := &mockUploader{}
	up.On("Upload", "/img/a.png").Return("", images.ErrUpload).Once()

	c, err := images.NewCachingUploader(up, images.CachingOptions{}, discard)
	require.NoError(t, err)
	_, err = c.Upload(context.Background(), "/img/a.png")
	assert.ErrorIs(t, err, images.ErrUpload)
	_, err = c.Upload(context.Background(), "/img/a.png")
	assert.ErrorIs(t, err, images.ErrUpload)
	up.AssertNumberOfCalls(t, "Upload", 1)
}

func TestCachingUploader_Timeout(t *testing.T) {
	blocking := uploaderFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	c, err := images.NewCachingUploader(blocking, images.CachingOptions{Timeout: 10 * time.Millisecond}, discard)
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), "/img/slow.png")
	assert.ErrorIs(t, err, images.ErrUploadTimeout)
}

func TestCachingUploader_CancelledContext(t *testing.T) {
	calls := 0
	up := uploaderFunc(func(ctx context.Context, _ string) (string, error) {
		calls++
		return "", errors.New("offline")
	})
	c, err := images.NewCachingUploader(up, images.CachingOptions{Retries: 5, Backoff: time.Hour}, discard)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = c.Upload(ctx, "/img/a.png")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCachingUploader_ConcurrentCallsShareOneUpload(t *testing.T) {
	var calls atomic.Int32
	slow := uploaderFunc(func(ctx context.Context, p string) (string, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return "https://cdn" + p, nil
	})
	c, err := images.NewCachingUploader(slow, images.CachingOptions{}, discard)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url, err := c.Upload(context.Background(), "/img/a.png")
			assert.NoError(t, err)
			assert.Equal(t, "https://cdn/img/a.png", url)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestCachingUploader_PersistentStore(t *testing.T) {
	local := imageFile(t)
	storePath := filepath.Join(t.TempDir(), cache.FileName)

	store := cache.NewFileStore(discard, "test", cache.FormatJSON)
	first := &mockUploader{}
	first.On("Upload", local).Return("https://cdn/a.png", nil).Once()
	c, err := images.NewCachingUploader(first, images.CachingOptions{Store: store}, discard)
	require.NoError(t, err)
	_, err = c.Upload(context.Background(), local)
	require.NoError(t, err)
	require.NoError(t, store.Persist(storePath))

	reloaded := cache.NewFileStore(discard, "test", cache.FormatJSON)
	require.NoError(t, reloaded.Load(storePath))
	second := &mockUploader{}
	c2, err := images.NewCachingUploader(second, images.CachingOptions{Store: reloaded}, discard)
	require.NoError(t, err)
	url, err := c2.Upload(context.Background(), local)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.png", url)
	second.AssertNotCalled(t, "Upload", local)
}
