package converter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AuditHeader is the first row of the audit log.
var AuditHeader = []string{"Type", "File", "Error Message", "Removed Code", "Missing Images"}

// ManifestHeader is the first row of the image manifest.
var ManifestHeader = []string{"File", "Original Path", "Local Path", "Uploaded URL"}

// AuditRow is one (document, category) record.
type AuditRow struct {
	Type          string
	File          string
	Message       string
	RemovedCode   []string
	MissingImages []string
}

func (r AuditRow) record() []string {
	return []string{r.Type, r.File, r.Message, strings.Join(r.RemovedCode, "\n"), strings.Join(r.MissingImages, "\n")}
}

// ManifestRow is one successfully uploaded image reference.
type ManifestRow struct {
	File         string
	OriginalPath string
	LocalPath    string
	URL          string
}

func (r ManifestRow) record() []string {
	return []string{r.File, r.OriginalPath, r.LocalPath, r.URL}
}

// csvLog appends rows to the same CSV file under several roots. Rows are
// flushed after every append so the file is complete up to the last
// finished document. It is not safe for concurrent use; the engine's
// aggregator is its only writer.
type csvLog struct {
	files   []*os.File
	writers []*csv.Writer
	paths   []string
	rows    int
}

func openCSVLog(name string, header []string, roots []string) (*csvLog, error) {
	l := &csvLog{}
	for _, root := range roots {
		p := filepath.Join(root, name)
		f, err := os.Create(p)
		if err != nil {
			_ = l.Close()
			return nil, err
		}
		w := csv.NewWriter(f)
		l.files = append(l.files, f)
		l.writers = append(l.writers, w)
		l.paths = append(l.paths, p)
		if err := w.Write(header); err != nil {
			_ = l.Close()
			return nil, err
		}
		w.Flush()
	}
	return l, nil
}

func (l *csvLog) append(records [][]string) error {
	if len(records) == 0 {
		return nil
	}
	for _, w := range l.writers {
		if err := w.WriteAll(records); err != nil {
			return err
		}
	}
	l.rows += len(records)
	return nil
}

// Close flushes and closes every file.
func (l *csvLog) Close() error {
	var errs []error
	for i, f := range l.files {
		l.writers[i].Flush()
		errs = append(errs, l.writers[i].Error(), f.Close())
	}
	l.files, l.writers = nil, nil
	return errors.Join(errs...)
}

// Paths returns the files being written.
func (l *csvLog) Paths() []string { return l.paths }

// Rows returns the number of records appended after the header.
func (l *csvLog) Rows() int { return l.rows }

// AuditLog is the append-only audit log written to every destination root.
type AuditLog struct{ *csvLog }

// OpenAuditLog creates the audit log in each root and writes the header.
func OpenAuditLog(roots ...string) (*AuditLog, error) {
	l, err := openCSVLog(AuditLogFileName, AuditHeader, roots)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuditWrite, err)
	}
	return &AuditLog{l}, nil
}

// Append writes rows in order.
func (a *AuditLog) Append(rows ...AuditRow) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	if err := a.append(records); err != nil {
		return fmt.Errorf("%w: %w", ErrAuditWrite, err)
	}
	return nil
}

// ImageManifest lists every uploaded image reference.
type ImageManifest struct{ *csvLog }

// OpenImageManifest creates the manifest in each root and writes the header.
func OpenImageManifest(roots ...string) (*ImageManifest, error) {
	l, err := openCSVLog(ManifestFileName, ManifestHeader, roots)
	if err != nil {
		return nil, fmt.Errorf("%w: image manifest: %w", ErrAuditWrite, err)
	}
	return &ImageManifest{l}, nil
}

// Append writes rows in order.
func (m *ImageManifest) Append(rows ...ManifestRow) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	if err := m.append(records); err != nil {
		return fmt.Errorf("%w: image manifest: %w", ErrAuditWrite, err)
	}
	return nil
}
