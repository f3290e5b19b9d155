package converter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report summarizes the result of a single migration run.
type Report struct {
	Summary        ReportSummary  `json:"summary"`
	ProcessedFiles []DocumentInfo `json:"processedFiles"`
	SkippedFiles   []SkippedInfo  `json:"skippedFiles"`
	Errors         []ErrorInfo    `json:"errors"`
}

// ReportSummary contains run metadata and aggregated counts.
type ReportSummary struct {
	RunID              string    `json:"runId"`
	RootPath           string    `json:"rootPath"`
	InputPath          string    `json:"inputPath"`
	OutputPath         string    `json:"outputPath"`
	MirrorPath         string    `json:"mirrorPath,omitempty"`
	ImagesRoot         string    `json:"imagesRoot,omitempty"`
	AuditLogPath       string    `json:"auditLogPath"`
	ProfileUsed        string    `json:"profileUsed,omitempty"`
	ConfigFilePath     string    `json:"configFilePath,omitempty"`
	Flags              RunFlags  `json:"flags"`
	TotalFilesScanned  int       `json:"totalFilesScanned"`
	ProcessedCount     int       `json:"processedCount"`
	SkippedCount       int       `json:"skippedCount"`
	WarningCount       int       `json:"warningCount"`
	ErrorCount         int       `json:"errorCount"`
	UploadedCount      int       `json:"uploadedCount"`
	FatalErrorOccurred bool      `json:"fatalError"`
	StartedAt          time.Time `json:"startedAt"`
	FinishedAt         time.Time `json:"finishedAt"`
	DurationSeconds    float64   `json:"durationSeconds"`
	Concurrency        int       `json:"concurrency"`
	SchemaVersion      string    `json:"schemaVersion"`
	AppVersion         string    `json:"appVersion,omitempty"`
}

// RunFlags records the switches a run was started with.
type RunFlags struct {
	IncludeMDX   bool   `json:"includeMdx"`
	UploadImages bool   `json:"uploadImages"`
	Uploader     string `json:"uploader,omitempty"`
	Flat         bool   `json:"flat"`
	MoveMap      string `json:"moveMap,omitempty"`
	AnnotateCode bool   `json:"annotateCode"`
	OnError      string `json:"onError"`
}

// DocumentInfo details one document that was written.
type DocumentInfo struct {
	Source       string   `json:"source"`
	Output       string   `json:"output"`
	MirrorOutput string   `json:"mirrorOutput,omitempty"`
	Title        string   `json:"title"`
	Warnings     []string `json:"warnings,omitempty"`
	Images       []string `json:"images,omitempty"`
	DurationMs   int64    `json:"durationMs"`
}

// SkippedInfo details a file that was intentionally not processed.
type SkippedInfo struct {
	Path    string `json:"path"`
	Reason  string `json:"reason"`
	Details string `json:"details"`
}

// ErrorInfo details an error encountered while processing a document.
type ErrorInfo struct {
	Path    string `json:"path"`
	Error   string `json:"error"`
	IsFatal bool   `json:"isFatal"`
}

// WriteReport writes r as indented JSON to path.
func WriteReport(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrReportWrite, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrReportWrite, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrReportWrite, err)
	}
	return nil
}
