package converter

import "time"

// Defaults applied by the configuration layer.
const (
	DefaultConcurrency           = 1
	DefaultTuiEnabled            = true
	DefaultOnErrorMode           = OnErrorContinue
	DefaultUploaderKind          = UploaderReadMe
	DefaultUploadTimeout         = 30 * time.Second
	DefaultUploadRetries         = 2
	DefaultIncludeMDX            = false
	DefaultFlat                  = false
	DefaultAnnotateCode          = false
	DefaultLanguageMinConfidence = 0.5
	DefaultWatchDebounce         = 300 * time.Millisecond
	DefaultVerbose               = false
)

// File names owned by a run.
const (
	AuditLogFileName  = "migration_audit.csv"
	ManifestFileName  = "image_uploads.csv"
	ReportFileName    = "migration_report.json"
	IgnoreFileName    = ".docsmigratorignore"
	LandingFileName   = "index.md"
	OrderFileName     = "_order.yaml"
	OutputExtension   = ".md"
	APIKeyEnvVariable = "README_API_KEY"
)

// ReportSchemaVersion is the version of the JSON report layout.
const ReportSchemaVersion = "1.0"

// Audit log categories.
const (
	AuditRemovedImports       = "removed-imports"
	AuditStrippedHTML         = "stripped-HTML"
	AuditRemovedScript        = "removed-script"
	AuditRemovedComponent     = "removed-embedded-component"
	AuditFoundImages          = "found-images"
	AuditImageNotFound        = "local-image-not-found"
	AuditUploadFailed         = "remote-upload-failed"
	AuditProcessingFailed     = "processing-failed"
	AuditRunFailed            = "run-failed"
	AuditMoved                = "moved"
	AuditMoveDuplicate        = "move-duplicate"
	AuditMoveDestMissing      = "move-destination-missing"
	AuditMoveDestNotDirectory = "move-destination-not-directory"
)

// Skip reasons used in the report.
const (
	SkipReasonBinary  = "binary_file"
	SkipReasonIgnored = "ignored_pattern"
)
