package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/cache"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultBackoff   = 500 * time.Millisecond
	DefaultCacheSize = 4096
)

// CachingOptions configures a CachingUploader.
type CachingOptions struct {
	// Timeout bounds each attempt. Zero uses DefaultTimeout.
	Timeout time.Duration
	// Retries is the number of extra attempts after a failure.
	Retries int
	// Backoff is the delay before the first retry; it doubles per retry.
	Backoff time.Duration
	// Size bounds the in-memory cache. Zero uses DefaultCacheSize.
	Size int
	// Store, when set, persists URLs across runs keyed by path and content.
	Store cache.Store
}

type outcome struct {
	url string
	err error
}

// CachingUploader wraps an Uploader so every local file is uploaded at most
// once per run, concurrent requests for the same file share one upload, and
// each attempt is bounded by a timeout.
type CachingUploader struct {
	next   Uploader
	opts   CachingOptions
	target string
	mem    *lru.Cache[string, outcome]
	group  singleflight.Group
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewCachingUploader wraps next.
func NewCachingUploader(next Uploader, opts CachingOptions, handler slog.Handler) (*CachingUploader, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Size <= 0 {
		opts.Size = DefaultCacheSize
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	mem, err := lru.New[string, outcome](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("create upload cache: %w", err)
	}
	target := "default"
	if t, ok := next.(interface{ Target() string }); ok {
		target = t.Target()
	}
	return &CachingUploader{
		next:   next,
		opts:   opts,
		target: target,
		mem:    mem,
		logger: slog.New(handler).With(slog.String("component", "images")),
		sleep:  sleepCtx,
	}, nil
}

// Target reports the wrapped uploader's destination.
func (c *CachingUploader) Target() string { return c.target }

// Upload returns the cached outcome for localPath or performs the upload.
// Failures are cached too, so a broken file is attempted once per run.
func (c *CachingUploader) Upload(ctx context.Context, localPath string) (string, error) {
	if o, ok := c.mem.Get(localPath); ok {
		return o.url, o.err
	}
	v, _, _ := c.group.Do(localPath, func() (any, error) {
		if o, ok := c.mem.Get(localPath); ok {
			return o, nil
		}
		o := c.upload(ctx, localPath)
		if ctx.Err() == nil {
			c.mem.Add(localPath, o)
		}
		return o, nil
	})
	o := v.(outcome)
	return o.url, o.err
}

func (c *CachingUploader) upload(ctx context.Context, localPath string) outcome {
	var hash string
	if c.opts.Store != nil {
		var err error
		if hash, err = cache.HashFile(localPath); err != nil {
			return outcome{err: fmt.Errorf("%w: read %s: %w", ErrUpload, localPath, err)}
		}
		if url, ok := c.opts.Store.Lookup(localPath, hash, c.target); ok {
			c.logger.Debug("Upload cache hit", "path", localPath)
			return outcome{url: url}
		}
	}
	url, err := c.withRetry(ctx, localPath)
	if err != nil {
		return outcome{err: err}
	}
	if c.opts.Store != nil {
		c.opts.Store.Record(localPath, hash, c.target, url)
	}
	return outcome{url: url}
}

func (c *CachingUploader) withRetry(ctx context.Context, localPath string) (string, error) {
	var lastErr error
	delay := c.opts.Backoff
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying image upload", "path", localPath, "attempt", attempt+1, "delay", delay, "error", lastErr.Error())
			if err := c.sleep(ctx, delay); err != nil {
				return "", fmt.Errorf("%w: %s: %w", ErrUpload, localPath, err)
			}
			delay *= 2
		}
		actx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		url, err := c.next.Upload(actx, localPath)
		timedOut := errors.Is(actx.Err(), context.DeadlineExceeded)
		cancel()
		if err == nil {
			return url, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrUpload, localPath, ctx.Err())
		}
		if timedOut && !errors.Is(err, ErrUploadTimeout) {
			err = fmt.Errorf("%w: %s after %s: %w", ErrUploadTimeout, localPath, c.opts.Timeout, err)
		}
		lastErr = err
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
