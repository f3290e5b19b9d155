package images

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/cache"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3-compatible image bucket.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	// PublicURL is prepended to the object key to form the hosted URL.
	PublicURL string `mapstructure:"publicURL"`
	UseSSL    bool   `mapstructure:"useSSL"`
}

// S3Uploader stores images in a bucket and returns their public URL.
type S3Uploader struct {
	client *minio.Client
	cfg    S3Config
}

// NewS3Uploader validates cfg and creates the client.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	switch {
	case cfg.Endpoint == "":
		return nil, fmt.Errorf("s3 endpoint is required")
	case cfg.Bucket == "":
		return nil, fmt.Errorf("s3 bucket is required")
	case strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "":
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PublicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.PublicURL = scheme + "://" + cfg.Endpoint + "/" + cfg.Bucket
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Uploader{client: client, cfg: cfg}, nil
}

// Target identifies the upload destination.
func (s *S3Uploader) Target() string {
	return "s3://" + s.cfg.Bucket + "/" + strings.Trim(s.cfg.Prefix, "/")
}

func (s *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	sum, err := cache.HashFile(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", ErrUpload, localPath, err)
	}
	key := s.ObjectKey(filepath.Base(localPath), sum)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.client.FPutObject(ctx, s.cfg.Bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("%w: put %s: %w", ErrUpload, key, err)
	}
	return strings.TrimSuffix(s.cfg.PublicURL, "/") + "/" + key, nil
}

// ObjectKey is the bucket key for a file: prefix, then the first twelve hex
// digits of its content hash and its name.
func (s *S3Uploader) ObjectKey(name, contentHash string) string {
	if len(contentHash) > 12 {
		contentHash = contentHash[:12]
	}
	if contentHash != "" {
		name = contentHash + "-" + name
	}
	return strings.TrimLeft(path.Join(strings.Trim(s.cfg.Prefix, "/"), name), "/")
}
