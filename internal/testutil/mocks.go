// Package testutil provides mocks and filesystem helpers shared by the
// migrator's tests. Configure mocks with testify/mock expectations, e.g.
// .On("Upload", mock.Anything, path).Return(url, nil).
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter"
	"github.com/stretchr/testify/mock"
)

// MockHooks is a converter.Hooks. Calls arrive concurrently from workers;
// testify/mock serializes its own bookkeeping.
type MockHooks struct {
	mock.Mock
}

// OnFileDiscovered mocks the OnFileDiscovered method.
func (m *MockHooks) OnFileDiscovered(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// OnFileStatusUpdate mocks the OnFileStatusUpdate method.
func (m *MockHooks) OnFileStatusUpdate(path string, status converter.Status, message string, duration time.Duration) error {
	args := m.Called(path, status, message, duration)
	return args.Error(0)
}

// OnRunComplete mocks the OnRunComplete method.
func (m *MockHooks) OnRunComplete(report converter.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

// MockUploader is an images.Uploader.
type MockUploader struct {
	mock.Mock
}

// Upload mocks the Upload method.
func (m *MockUploader) Upload(ctx context.Context, localPath string) (string, error) {
	args := m.Called(ctx, localPath)
	return args.String(0), args.Error(1)
}

// Target keeps mock uploads in their own cache namespace.
func (m *MockUploader) Target() string { return "mock" }

// MockLanguageDetector is an mdx.LanguageDetector.
type MockLanguageDetector struct {
	mock.Mock
}

// Detect mocks the Detect method.
func (m *MockLanguageDetector) Detect(content []byte, filePath string) (string, float64, error) {
	args := m.Called(content, filePath)
	lang, _ := args.Get(0).(string)
	confidence, _ := args.Get(1).(float64)
	return lang, confidence, args.Error(2)
}

// MockEncodingHandler is an encoding.Handler.
type MockEncodingHandler struct {
	mock.Mock
}

// Decode mocks the Decode method.
func (m *MockEncodingHandler) Decode(content []byte) ([]byte, string, error) {
	args := m.Called(content)
	out, _ := args.Get(0).([]byte)
	return out, args.String(1), args.Error(2)
}

// IsBinary mocks the IsBinary method.
func (m *MockEncodingHandler) IsBinary(content []byte) bool {
	args := m.Called(content)
	return args.Bool(0)
}

// RecordingHandler is a slog.Handler that keeps every record for later
// inspection.
type RecordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
	Level   slog.Level
}

// Enabled reports whether level is at or above the handler's level.
func (h *RecordingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.Level
}

// Handle stores r.
func (h *RecordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

// WithAttrs returns h; attributes are not tracked.
func (h *RecordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

// WithGroup returns h; groups are not tracked.
func (h *RecordingHandler) WithGroup(string) slog.Handler { return h }

// Messages returns the messages logged at level.
func (h *RecordingHandler) Messages(level slog.Level) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.records {
		if r.Level == level {
			out = append(out, r.Message)
		}
	}
	return out
}
