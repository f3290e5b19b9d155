package images_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(p, []byte("png-bytes"), 0o644))
	return p
}

func TestHTTPUploader(t *testing.T) {
	var gotUser, gotName, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotUser, _, _ = r.BasicAuth()
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotName, gotBody = hdr.Filename, string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://files.readme.io/abc-a.png"}`))
	}))
	defer srv.Close()

	up := images.NewHTTPUploader(srv.URL, "rdme_key", srv.Client())
	url, err := up.Upload(context.Background(), imageFile(t))
	require.NoError(t, err)
	assert.Equal(t, "https://files.readme.io/abc-a.png", url)
	assert.Equal(t, "rdme_key", gotUser)
	assert.Equal(t, "a.png", gotName)
	assert.Equal(t, "png-bytes", gotBody)
	assert.Equal(t, srv.URL, up.Target())
}

func TestHTTPUploader_Responses(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		expected string
		errText  string
	}{
		{"array response", http.StatusOK, `[300,"https://files/x.png"]`, "https://files/x.png", ""},
		{"created status", http.StatusCreated, `{"url":"https://files/y.png"}`, "https://files/y.png", ""},
		{"server error", http.StatusInternalServerError, "boom", "", "status 500: boom"},
		{"missing url", http.StatusOK, `{"id":"1"}`, "", "response has no url"},
		{"not json", http.StatusOK, `<html>`, "", "response has no url"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			url, err := images.NewHTTPUploader(srv.URL, "k", nil).Upload(context.Background(), imageFile(t))
			if tc.errText != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, images.ErrUpload)
				assert.Contains(t, err.Error(), tc.errText)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, url)
		})
	}
}

func TestHTTPUploader_MissingFile(t *testing.T) {
	_, err := images.NewHTTPUploader("http://127.0.0.1:1", "k", nil).Upload(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	assert.ErrorIs(t, err, images.ErrUpload)
}

func TestNewHTTPUploader_Defaults(t *testing.T) {
	up := images.NewHTTPUploader("", "k", nil)
	assert.Equal(t, images.DefaultEndpoint, up.Endpoint)
	assert.Equal(t, http.DefaultClient, up.Client)
}

func TestS3Uploader(t *testing.T) {
	_, err := images.NewS3Uploader(images.S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "endpoint is required")
	_, err = images.NewS3Uploader(images.S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket is required")
	_, err = images.NewS3Uploader(images.S3Config{Endpoint: "localhost:9000", Bucket: "b"})
	assert.ErrorContains(t, err, "access key")

	up, err := images.NewS3Uploader(images.S3Config{
		Endpoint: "localhost:9000", Bucket: "docs", Prefix: "/images/", AccessKey: "a", SecretKey: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://docs/images", up.Target())
	assert.Equal(t, "images/0123456789ab-a.png", up.ObjectKey("a.png", "0123456789abcdef"))
	assert.Equal(t, "images/a.png", up.ObjectKey("a.png", ""))
}
