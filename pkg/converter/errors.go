package converter

import (
	"errors"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/cache"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/images"
)

// Errors returned by the engine or recorded per document. Callers match them
// with errors.Is.
var (
	// ErrConfigValidation is returned by Options.Validate and NewEngine.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrReadFailed: the source document could not be read.
	ErrReadFailed = errors.New("failed to read file")

	// ErrDecoding: the source bytes could not be converted to UTF-8.
	ErrDecoding = errors.New("failed to decode file")

	// ErrParse covers malformed frontmatter and embedded syntax the
	// structural parser rejects. It aborts one document only.
	ErrParse = errors.New("failed to parse document")

	// ErrRender: the output frontmatter could not be produced.
	ErrRender = errors.New("failed to render document")

	// ErrWriteFailed: an output file or its directory could not be written.
	ErrWriteFailed = errors.New("failed to write output file")

	// ErrMoveMap: the move-map file could not be read.
	ErrMoveMap = errors.New("failed to load move map")

	// ErrImageIndex: the images root could not be indexed.
	ErrImageIndex = images.ErrIndex

	// ErrUploadFailed and ErrUploadTimeout mark per-reference upload failures.
	ErrUploadFailed  = images.ErrUpload
	ErrUploadTimeout = images.ErrUploadTimeout

	// ErrFinalize: landing or ordering files could not be written.
	ErrFinalize = errors.New("failed to finalize output directories")

	// ErrReportWrite: the run report could not be written.
	ErrReportWrite = errors.New("failed to write run report")

	// ErrAuditWrite: the audit log or image manifest could not be written.
	ErrAuditWrite = errors.New("failed to write audit log")

	// ErrCacheLoad and ErrCachePersist come from the upload cache.
	ErrCacheLoad    = cache.ErrCacheLoad
	ErrCachePersist = cache.ErrCachePersist

	// ErrFatalRun wraps every run-level failure returned by Engine.Run.
	ErrFatalRun = errors.New("migration run failed")
)
