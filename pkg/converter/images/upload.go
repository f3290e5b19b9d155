package images

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUpload marks a failed upload attempt.
	ErrUpload = errors.New("image upload failed")
	// ErrUploadTimeout marks an attempt that exceeded its deadline.
	ErrUploadTimeout = errors.New("image upload timed out")
)

// DefaultEndpoint is the ReadMe image upload endpoint.
const DefaultEndpoint = "https://dash.readme.com/api/images/image-upload"

const maxResponseBytes = 1 << 20

// Uploader publishes a local file and returns its hosted URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// HTTPUploader posts files as multipart/form-data, authenticated with the
// API key as the basic-auth user name.
type HTTPUploader struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewHTTPUploader returns an uploader for endpoint. An empty endpoint uses
// DefaultEndpoint; a nil client uses http.DefaultClient.
func NewHTTPUploader(endpoint, apiKey string, client *http.Client) *HTTPUploader {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPUploader{Endpoint: endpoint, APIKey: apiKey, Client: client}
}

// Target identifies the upload destination.
func (u *HTTPUploader) Target() string { return u.Endpoint }

func (u *HTTPUploader) Upload(ctx context.Context, localPath string) (string, error) {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", ErrUpload, localPath, err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(u.APIKey, "")

	resp, err := u.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s: %w", ErrUploadTimeout, localPath, err)
		}
		return "", fmt.Errorf("%w: %s: %w", ErrUpload, localPath, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrUpload, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s: status %d: %s", ErrUpload, localPath, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	url := responseURL(raw)
	if url == "" {
		return "", fmt.Errorf("%w: %s: response has no url", ErrUpload, localPath)
	}
	return url, nil
}

// responseURL accepts {"url": "..."} or a JSON array whose first string
// element is the URL.
func responseURL(raw []byte) string {
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.URL != "" {
		return obj.URL
	}
	var arr []any
	if err := json.Unmarshal(raw, &arr); err == nil {
		for _, v := range arr {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
