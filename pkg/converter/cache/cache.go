// Package cache persists uploaded-image URLs between runs so a re-run does not
// upload the same physical asset twice.
package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName is the default name of the upload cache file.
const FileName = ".docs-migrator-uploads"

// SchemaVersion is the current on-disk layout. Load discards files written
// with a different version.
const SchemaVersion = "1"

const (
	FormatGob     = "gob"
	FormatJSON    = "json"
	DefaultFormat = FormatJSON
)

var (
	// ErrCacheLoad is returned only for I/O failures opening the cache file.
	// Corrupt or mismatched files are logged and treated as empty.
	ErrCacheLoad = errors.New("failed to load upload cache")
	// ErrCachePersist is returned when the cache cannot be written.
	ErrCachePersist = errors.New("failed to persist upload cache")
)

// Entry is one uploaded asset.
type Entry struct {
	URL         string    `json:"url" gob:"url"`
	ContentHash string    `json:"contentHash" gob:"contentHash"`
	UploadedAt  time.Time `json:"uploadedAt" gob:"uploadedAt"`
	// Target identifies the upload destination (endpoint or bucket) so
	// switching uploaders invalidates old URLs.
	Target string `json:"target" gob:"target"`
}

// Header precedes the entries in the cache file.
type Header struct {
	SchemaVersion string `json:"schemaVersion" gob:"schemaVersion"`
	ToolVersion   string `json:"toolVersion" gob:"toolVersion"`
}

type jsonFile struct {
	Header  Header           `json:"header"`
	Entries map[string]Entry `json:"entries"`
}

// Store maps a local image path to the URL it was uploaded to.
//
// Lookup and Record are safe for concurrent use.
type Store interface {
	// Load replaces the in-memory entries with the contents of path. A
	// missing, empty, corrupt or version-mismatched file yields an empty store
	// and a nil error.
	Load(path string) error
	// Lookup returns the stored URL when localPath was uploaded to target
	// with the same content hash.
	Lookup(localPath, contentHash, target string) (string, bool)
	// Record stores a successful upload.
	Record(localPath, contentHash, target, url string)
	// Persist atomically writes the entries to path.
	Persist(path string) error
	// Len reports the number of entries.
	Len() int
}

type fileStore struct {
	mu          sync.RWMutex
	entries     map[string]Entry
	logger      *slog.Logger
	toolVersion string
	format      string
}

// NewFileStore returns a Store persisted as gob or JSON. Unknown formats fall
// back to DefaultFormat.
func NewFileStore(handler slog.Handler, toolVersion, format string) Store {
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	format = strings.ToLower(format)
	if format != FormatGob && format != FormatJSON {
		format = DefaultFormat
	}
	if toolVersion == "" {
		toolVersion = "dev"
	}
	return &fileStore{
		entries:     make(map[string]Entry),
		logger:      slog.New(handler).With(slog.String("component", "uploadCache"), slog.String("format", format)),
		toolVersion: toolVersion,
		format:      format,
	}
}

func (s *fileStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("Upload cache not found, starting empty", "path", path)
			return nil
		}
		return fmt.Errorf("%w: open '%s': %w", ErrCacheLoad, path, err)
	}
	defer f.Close()

	var (
		header  Header
		entries map[string]Entry
	)
	if s.format == FormatJSON {
		var data jsonFile
		err = json.NewDecoder(f).Decode(&data)
		header, entries = data.Header, data.Entries
	} else {
		dec := gob.NewDecoder(f)
		if err = dec.Decode(&header); err == nil {
			err = dec.Decode(&entries)
		}
	}
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.logger.Warn("Upload cache is empty or truncated, ignoring", "path", path)
		} else {
			s.logger.Warn("Upload cache could not be decoded, ignoring", "path", path, "error", err.Error())
		}
		return nil
	}
	if header.SchemaVersion != SchemaVersion {
		s.logger.Warn("Upload cache schema mismatch, ignoring", "path", path,
			"file_schema", header.SchemaVersion, "expected_schema", SchemaVersion)
		return nil
	}
	if entries != nil {
		s.entries = entries
	}
	s.logger.Info("Upload cache loaded", "path", path, "entries", len(s.entries))
	return nil
}

func (s *fileStore) Lookup(localPath, contentHash, target string) (string, bool) {
	s.mu.RLock()
	e, ok := s.entries[localPath]
	s.mu.RUnlock()
	switch {
	case !ok:
		return "", false
	case e.ContentHash != contentHash:
		s.logger.Debug("Upload cache stale (content changed)", "path", localPath)
		return "", false
	case e.Target != target:
		s.logger.Debug("Upload cache stale (target changed)", "path", localPath)
		return "", false
	}
	return e.URL, true
}

func (s *fileStore) Record(localPath, contentHash, target, url string) {
	s.mu.Lock()
	s.entries[localPath] = Entry{URL: url, ContentHash: contentHash, Target: target, UploadedAt: time.Now().UTC()}
	s.mu.Unlock()
}

func (s *fileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *fileStore) Persist(path string) error {
	s.mu.RLock()
	snapshot := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory '%s': %w", ErrCachePersist, dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file in '%s': %w", ErrCachePersist, dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if _, statErr := os.Stat(tmpPath); statErr == nil {
			_ = os.Remove(tmpPath)
		}
	}()

	header := Header{SchemaVersion: SchemaVersion, ToolVersion: s.toolVersion}
	if s.format == FormatJSON {
		enc := json.NewEncoder(tmp)
		enc.SetIndent("", "  ")
		err = enc.Encode(jsonFile{Header: header, Entries: snapshot})
	} else {
		enc := gob.NewEncoder(tmp)
		if err = enc.Encode(header); err == nil {
			err = enc.Encode(snapshot)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrCachePersist, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %w", ErrCachePersist, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: rename to '%s': %w", ErrCachePersist, path, err)
	}
	s.logger.Info("Upload cache persisted", "path", path, "entries", len(snapshot))
	return nil
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
