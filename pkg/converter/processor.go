package converter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/encoding"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/images"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/mdx"
)

// FileResult is everything one document contributes to the shared audit
// log, image manifest and report. Workers send it to the aggregator, which is
// the only writer of those accumulators.
type FileResult struct {
	Path     string
	Status   Status
	Document *DocumentInfo
	Skipped  *SkippedInfo
	Error    *ErrorInfo
	Audit    []AuditRow
	Uploads  []ManifestRow
	Outputs  []string
	Duration time.Duration
}

// outputClaims remembers which document wrote each output path.
type outputClaims struct {
	mu     sync.Mutex
	owners map[string]string
}

func newOutputClaims() *outputClaims {
	return &outputClaims{owners: make(map[string]string)}
}

// claim records owner for p and returns the previous owner, if any.
func (c *outputClaims) claim(p, owner string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.owners[p]
	c.owners[p] = owner
	if prev == owner {
		return ""
	}
	return prev
}

// FileProcessor runs the conversion pipeline for a single document.
type FileProcessor struct {
	opts     *Options
	logger   *slog.Logger
	root     string
	encoding encoding.Handler
	mdxOpts  mdx.Options
	resolver *images.Resolver
	uploader images.Uploader
	moveMap  *MoveMap
	claims   *outputClaims
}

// NewFileProcessor creates a FileProcessor. resolver and uploader are nil
// when image upload is disabled; moveMap may be nil.
func NewFileProcessor(
	opts *Options,
	loggerHandler slog.Handler,
	encHandler encoding.Handler,
	mdxOpts mdx.Options,
	resolver *images.Resolver,
	uploader images.Uploader,
	moveMap *MoveMap,
) *FileProcessor {
	if encHandler == nil {
		encHandler = encoding.NewCharsetHandler(opts.DefaultEncoding)
	}
	return &FileProcessor{
		opts:     opts,
		logger:   slog.New(loggerHandler).With(slog.String("component", "processor")),
		root:     opts.SourceDir(),
		encoding: encHandler,
		mdxOpts:  mdxOpts,
		resolver: resolver,
		uploader: uploader,
		moveMap:  moveMap,
		claims:   newOutputClaims(),
	}
}

// ProcessFile converts one document and writes it to its destinations. Any
// error fails this document only: the result then carries an ErrorInfo and a
// single processing-failed audit row, and nothing else from the document.
func (p *FileProcessor) ProcessFile(ctx context.Context, absFilePath string) (result FileResult, status Status, err error) {
	startTime := time.Now()
	rel := relPath(p.root, absFilePath)
	result.Path = rel
	logArgs := []any{slog.String("path", rel)}

	defer func() {
		result.Duration = time.Since(startTime)
		if err != nil {
			status = StatusFailed
			result.Document, result.Uploads = nil, nil
			result.Error = &ErrorInfo{Path: rel, Error: err.Error(), IsFatal: p.opts.OnErrorMode == OnErrorStop}
			result.Audit = []AuditRow{{Type: AuditProcessingFailed, File: rel, Message: err.Error()}}
		}
		if result.Document != nil {
			result.Document.DurationMs = result.Duration.Milliseconds()
		}
		result.Status = status
		level := slog.LevelDebug
		if status == StatusFailed {
			level = slog.LevelWarn
		}
		attrs := append(logArgs, slog.String("status", string(status)), slog.Duration("duration", result.Duration))
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		p.logger.Log(ctx, level, "Processor finished file task", attrs...)
	}()

	if err = ctx.Err(); err != nil {
		return result, StatusFailed, err
	}

	raw, readErr := os.ReadFile(absFilePath)
	if readErr != nil {
		return result, StatusFailed, fmt.Errorf("%w: %w", ErrReadFailed, readErr)
	}
	if p.encoding.IsBinary(raw) {
		result.Skipped = &SkippedInfo{Path: rel, Reason: SkipReasonBinary, Details: "binary content detected"}
		return result, StatusSkipped, nil
	}
	decoded, enc, decErr := p.encoding.Decode(raw)
	if decErr != nil {
		return result, StatusFailed, fmt.Errorf("%w: %w", ErrDecoding, decErr)
	}
	if enc != "utf-8" {
		p.logger.Debug("Decoded non-UTF-8 source", append(logArgs, slog.String("encoding", enc))...)
	}

	meta, body, err := splitFrontmatter(string(decoded))
	if err != nil {
		return result, StatusFailed, err
	}
	if dropped := meta.droppedFields(); len(dropped) > 0 {
		p.logger.Debug("Dropping frontmatter fields", append(logArgs, slog.Any("fields", dropped))...)
	}

	tr, err := mdx.Transform(body, p.mdxOpts)
	if err != nil {
		return result, StatusFailed, fmt.Errorf("%w: %w", ErrParse, err)
	}

	doc := &DocumentInfo{Source: rel, Images: distinct(tr.Log.Images)}
	audit := logRows(rel, tr.Log)
	if tr.Log.EmptyImages > 0 {
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("%d image component(s) without a readable source", tr.Log.EmptyImages))
	}
	if n := len(tr.Log.Unlowered); n > 0 {
		p.logger.Debug("Raw HTML passed through unchanged", append(logArgs, slog.Int("count", n))...)
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("%d raw HTML block(s) passed through unchanged", n))
	}

	text := tr.Text
	if p.resolver != nil && p.uploader != nil {
		var rows []AuditRow
		text, rows = p.handleImages(ctx, rel, text, tr.Log.Images, doc, &result)
		audit = append(audit, rows...)
	}
	text = images.LowerPlaceholders(text)

	text, removedImports := mdx.StripImports(text)
	if len(removedImports) > 0 {
		audit = append([]AuditRow{{Type: AuditRemovedImports, File: rel, RemovedCode: removedImports}}, audit...)
	}

	doc.Title = deriveTitle(meta, tr.Heading)
	content, err := renderDocument(doc.Title, text)
	if err != nil {
		return result, StatusFailed, err
	}

	primary, moveRows := p.placement(rel, doc)
	audit = append(audit, moveRows...)
	if err = writeOutput(primary, content); err != nil {
		return result, StatusFailed, err
	}
	doc.Output = primary
	result.Outputs = append(result.Outputs, primary)
	if p.opts.MirrorPath != "" {
		mirror := filepath.Join(p.opts.MirrorPath, filepath.FromSlash(outputRel(rel)))
		if err = writeOutput(mirror, content); err != nil {
			return result, StatusFailed, err
		}
		doc.MirrorOutput = mirror
		result.Outputs = append(result.Outputs, mirror)
	}

	result.Document = doc
	result.Audit = audit
	return result, StatusSuccess, nil
}

// logRows turns the rewrite log into audit rows, one per non-empty category.
func logRows(rel string, log *mdx.Log) []AuditRow {
	var rows []AuditRow
	if len(log.StrippedHTML) > 0 {
		rows = append(rows, AuditRow{Type: AuditStrippedHTML, File: rel, RemovedCode: log.StrippedHTML})
	}
	if len(log.Scripts) > 0 {
		rows = append(rows, AuditRow{Type: AuditRemovedScript, File: rel, RemovedCode: log.Scripts})
	}
	if len(log.Components) > 0 {
		rows = append(rows, AuditRow{Type: AuditRemovedComponent, File: rel, RemovedCode: log.Components})
	}
	if len(log.Images) > 0 {
		rows = append(rows, AuditRow{Type: AuditFoundImages, File: rel, MissingImages: distinct(log.Images)})
	}
	return rows
}

func (p *FileProcessor) handleImages(ctx context.Context, rel, text string, refs []string, doc *DocumentInfo, result *FileResult) (string, []AuditRow) {
	out := images.ResolveAndUpload(ctx, refs, p.resolver, p.uploader)
	var rows []AuditRow
	if len(out.Missing) > 0 {
		rows = append(rows, AuditRow{Type: AuditImageNotFound, File: rel, Message: "local image not found", MissingImages: out.Missing})
		for _, m := range out.Missing {
			doc.Warnings = append(doc.Warnings, "missing image: "+m)
		}
	}
	if len(out.Failed) > 0 {
		msgs := make([]string, len(out.Failed))
		refsFailed := make([]string, len(out.Failed))
		for i, f := range out.Failed {
			msgs[i] = f.Err.Error()
			refsFailed[i] = f.Ref
			doc.Warnings = append(doc.Warnings, "upload failed: "+f.Ref)
			p.logger.Warn("Image upload failed", slog.String("path", rel), slog.String("image", f.Ref), slog.String("error", f.Err.Error()))
		}
		rows = append(rows, AuditRow{Type: AuditUploadFailed, File: rel, Message: strings.Join(msgs, "; "), MissingImages: refsFailed})
	}
	for _, u := range out.Uploaded {
		result.Uploads = append(result.Uploads, ManifestRow{File: rel, OriginalPath: u.Ref, LocalPath: u.Local, URL: u.URL})
	}
	return images.Rewrite(text, out.Pairs()), rows
}

// outputRel is the mirrored output path of a source document.
func outputRel(rel string) string {
	return strings.TrimSuffix(rel, path.Ext(rel)) + OutputExtension
}

// placement decides where the primary copy of rel is written and reports
// move-map outcomes as audit rows.
func (p *FileProcessor) placement(rel string, doc *DocumentInfo) (string, []AuditRow) {
	outRel := outputRel(rel)
	name := path.Base(outRel)
	target := filepath.Join(p.opts.OutputPath, filepath.FromSlash(outRel))
	if p.opts.Flat {
		target = filepath.Join(p.opts.OutputPath, name)
	}

	var rows []AuditRow
	dest, decision := p.moveMap.Resolve(name, path.Base(rel))
	switch decision {
	case MoveTo:
		target = filepath.Join(dest, name)
		rows = append(rows, AuditRow{Type: AuditMoved, File: rel, Message: "moved to " + dest})
	case MoveAmbiguous:
		rows = append(rows, AuditRow{Type: AuditMoveDuplicate, File: rel, Message: "ambiguous move-map entry: " + dest})
	case MoveDestMissing:
		rows = append(rows, AuditRow{Type: AuditMoveDestMissing, File: rel, Message: "destination does not exist: " + dest})
	case MoveDestNotDir:
		rows = append(rows, AuditRow{Type: AuditMoveDestNotDirectory, File: rel, Message: "destination is not a directory: " + dest})
	}
	if decision != MoveNone && decision != MoveTo {
		doc.Warnings = append(doc.Warnings, rows[0].Message)
	}

	if prev := p.claims.claim(target, rel); prev != "" {
		msg := fmt.Sprintf("output %s also written by %s", filepath.Base(target), prev)
		doc.Warnings = append(doc.Warnings, msg)
		p.logger.Warn("Output name collision", slog.String("path", rel), slog.String("other", prev), slog.String("output", target))
	}
	return target, rows
}

func writeOutput(target, content string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: create directory for %s: %w", ErrWriteFailed, target, err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// distinct returns the non-empty values of list in first-seen order.
func distinct(list []string) []string {
	var out []string
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
