package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/cache"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/encoding"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/images"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/language"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/mdx"
	"github.com/jmadden/readme-docs-migration-github/pkg/util"
)

// Engine orchestrates one migration run.
type Engine struct {
	opts          *Options
	logger        *slog.Logger
	ctx           context.Context
	cancelFunc    context.CancelFunc
	concurrency   int
	runID         string
	processor     *FileProcessor
	walker        *Walker
	aggregator    *reportAggregator
	audit         *AuditLog
	manifest      *ImageManifest
	uploadStore   cache.Store
	uploadCache   string
	fatalOccurred atomic.Bool
}

// NewEngine validates opts and prepares an Engine.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}
	if opts.OnErrorMode == "" {
		opts.OnErrorMode = DefaultOnErrorMode
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := slog.New(opts.Logger).With(slog.String("component", "engine"))

	src := opts.SourceDir()
	if fi, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("%w: cannot access input path '%s': %w", ErrConfigValidation, src, err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("%w: input path '%s' is not a directory", ErrConfigValidation, src)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
		opts.Concurrency = concurrency
		logger.Debug("Concurrency auto-detected", "count", concurrency)
	}

	engineCtx, cancelFunc := context.WithCancel(ctx)
	return &Engine{
		opts:        &opts,
		logger:      logger,
		ctx:         engineCtx,
		cancelFunc:  cancelFunc,
		concurrency: concurrency,
		runID:       uuid.NewString(),
		aggregator:  newReportAggregator(),
	}, nil
}

// Run processes every document, finalizes the destination directories and
// writes the report. Per-document failures are recorded in the report and
// audit log; the returned error is non-nil only for run-level failures and
// wraps ErrFatalRun.
func (e *Engine) Run() (report Report, finalErr error) {
	startTime := time.Now()
	e.logger.Info("Starting migration run", "runId", e.runID, "source", e.opts.SourceDir(), "output", e.opts.OutputPath, "concurrency", e.concurrency)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic recovered during engine run", "panicValue", r)
			e.fatalOccurred.Store(true)
			finalErr = fmt.Errorf("%w: panic during execution: %v", ErrFatalRun, r)
			e.closeLogs(finalErr)
		}
		e.cancelFunc()
		report = e.finish(startTime, report, finalErr)
	}()

	workerChan := make(chan string, e.concurrency)
	if err := e.prepare(workerChan); err != nil {
		e.fatalOccurred.Store(true)
		finalErr = fmt.Errorf("%w: %w", ErrFatalRun, err)
		e.closeLogs(finalErr)
		return e.buildReport(startTime), finalErr
	}

	resultsChan := make(chan FileResult, e.concurrency)
	var wg sync.WaitGroup
	e.startWorkers(&wg, workerChan, resultsChan)

	aggregatorDone := make(chan struct{})
	go e.aggregateResults(resultsChan, aggregatorDone)

	walkerDone := make(chan error, 1)
	go func() {
		defer close(walkerDone)
		walkerErr := e.walker.StartWalk(e.ctx)
		if walkerErr != nil && !errors.Is(walkerErr, context.Canceled) && !errors.Is(walkerErr, context.DeadlineExceeded) {
			walkerDone <- walkerErr
			e.fatalOccurred.Store(true)
			e.cancelFunc()
		}
	}()

	finalWalkErr := <-walkerDone
	wg.Wait()
	close(resultsChan)
	<-aggregatorDone
	for _, s := range e.walker.Skipped() {
		e.aggregator.addSkipped(s)
	}

	switch {
	case finalWalkErr != nil:
		finalErr = fmt.Errorf("%w: %w", ErrFatalRun, finalWalkErr)
	case e.aggregator.writeErr() != nil:
		finalErr = fmt.Errorf("%w: %w", ErrFatalRun, e.aggregator.writeErr())
	case e.ctx.Err() != nil:
		e.logger.Info("Processing run cancelled", slog.String("reason", e.ctx.Err().Error()))
		e.fatalOccurred.Store(true)
		if first := e.aggregator.getFirstFatalError(); first != nil {
			finalErr = fmt.Errorf("%w: processing stopped: %w", ErrFatalRun, first)
		} else {
			finalErr = fmt.Errorf("%w: %w", ErrFatalRun, e.ctx.Err())
		}
	}

	if finalErr == nil {
		stats, err := Finalize(e.ctx, e.opts.DestinationRoots(), e.opts.Logger)
		if err != nil {
			e.fatalOccurred.Store(true)
			finalErr = fmt.Errorf("%w: %w", ErrFatalRun, err)
		} else {
			e.logger.Debug("Finalizer completed", "landingFiles", stats.LandingFiles, "orderFiles", stats.OrderFiles)
		}
	}
	e.closeLogs(finalErr)
	return e.buildReport(startTime), finalErr
}

// finish persists the upload cache, writes the report to every destination
// root and fires OnRunComplete.
func (e *Engine) finish(startTime time.Time, report Report, finalErr error) Report {
	if e.uploadStore != nil && e.uploadCache != "" {
		if err := e.uploadStore.Persist(e.uploadCache); err != nil {
			e.logger.Error("Failed to persist upload cache", slog.String("path", e.uploadCache), slog.String("error", err.Error()))
		}
	}
	if report.Summary.RunID == "" {
		report = e.buildReport(startTime)
	}
	for _, root := range e.opts.DestinationRoots() {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		if err := WriteReport(filepath.Join(root, ReportFileName), report); err != nil {
			e.logger.Error("Failed to write run report", slog.String("root", root), slog.String("error", err.Error()))
		}
	}
	e.logger.Info("Migration run finished",
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("processed", report.Summary.ProcessedCount),
		slog.Int("skipped", report.Summary.SkippedCount),
		slog.Int("errors", report.Summary.ErrorCount),
		slog.Bool("fatalErrorOccurred", report.Summary.FatalErrorOccurred),
	)
	if finalErr != nil {
		e.logger.Error("Migration run failed", slog.String("error", finalErr.Error()))
	}
	if hookErr := e.opts.EventHooks.OnRunComplete(report); hookErr != nil {
		e.logger.Warn("OnRunComplete hook returned an error", slog.String("error", hookErr.Error()))
	}
	return report
}

// prepare creates the destination roots and every per-run collaborator.
func (e *Engine) prepare(workerChan chan<- string) error {
	for _, root := range e.opts.DestinationRoots() {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("%w: cannot create destination '%s': %w", ErrWriteFailed, root, err)
		}
	}

	var moveMap *MoveMap
	if e.opts.MoveMapPath != "" {
		var err error
		if moveMap, err = LoadMoveMap(e.opts.resolve(e.opts.MoveMapPath), e.opts.resolve(".")); err != nil {
			return err
		}
		e.logger.Info("Move map loaded", "entries", moveMap.Len())
	}

	resolver, uploader, err := e.setupImages()
	if err != nil {
		return err
	}

	mdxOpts := mdx.DefaultOptions()
	if e.opts.AnnotateCode {
		mdxOpts.Detector = e.opts.LanguageDetector
		if mdxOpts.Detector == nil {
			mdxOpts.Detector = language.NewEnryDetector(e.opts.LanguageMap)
		}
		mdxOpts.MinConfidence = DefaultLanguageMinConfidence
	}
	enc := e.opts.EncodingHandler
	if enc == nil {
		enc = encoding.NewCharsetHandler(e.opts.DefaultEncoding)
	}
	e.processor = NewFileProcessor(e.opts, e.opts.Logger, enc, mdxOpts, resolver, uploader, moveMap)

	if e.walker, err = NewWalker(e.opts, workerChan, e.opts.Logger); err != nil {
		return err
	}

	if e.audit, err = OpenAuditLog(e.opts.DestinationRoots()...); err != nil {
		return err
	}
	if e.opts.UploadImages {
		if e.manifest, err = OpenImageManifest(e.opts.DestinationRoots()...); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) setupImages() (*images.Resolver, images.Uploader, error) {
	if !e.opts.UploadImages {
		return nil, nil, nil
	}
	dir := e.opts.ImagesDir()
	ignore, err := util.NewIgnoreMatcher(dir, IgnoreFileName, e.opts.IgnorePatterns)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrImageIndex, err)
	}
	ix, err := images.BuildIndex(e.ctx, dir, ignore, e.opts.Logger)
	if err != nil {
		return nil, nil, err
	}
	e.logger.Info("Image index built", "root", dir, "images", ix.Len())

	base := e.opts.ImageUploader
	if base == nil {
		switch e.opts.uploaderKind() {
		case UploaderS3:
			s3, err := images.NewS3Uploader(e.opts.S3)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
			}
			base = s3
		default:
			base = images.NewHTTPUploader(e.opts.UploadEndpoint, e.opts.APIKey, &http.Client{})
		}
	}

	e.uploadStore = e.opts.UploadCache
	if e.opts.UploadCachePath != "" {
		e.uploadCache = e.opts.resolve(e.opts.UploadCachePath)
		if e.uploadStore == nil {
			e.uploadStore = cache.NewFileStore(e.opts.Logger, e.opts.AppVersion, e.opts.UploadCacheFmt)
		}
		if err := e.uploadStore.Load(e.uploadCache); err != nil {
			e.logger.Warn("Upload cache unavailable, continuing without it", "path", e.uploadCache, "error", err.Error())
			e.uploadStore, e.uploadCache = nil, ""
		}
	}

	uploader, err := images.NewCachingUploader(base, images.CachingOptions{
		Timeout: e.opts.UploadTimeout,
		Retries: e.opts.UploadRetries,
		Store:   e.uploadStore,
	}, e.opts.Logger)
	if err != nil {
		return nil, nil, err
	}
	return images.NewResolver(ix, images.CommonSuffix), uploader, nil
}

// closeLogs closes the audit log and image manifest. A run-level failure is
// recorded as a final run-failed row first.
func (e *Engine) closeLogs(runErr error) {
	if e.audit != nil {
		if runErr != nil {
			if err := e.audit.Append(AuditRow{Type: AuditRunFailed, Message: runErr.Error()}); err != nil {
				e.logger.Error("Failed to record run failure in audit log", slog.String("error", err.Error()))
			}
		}
		if err := e.audit.Close(); err != nil {
			e.logger.Error("Failed to close audit log", slog.String("error", err.Error()))
		}
		e.audit = nil
	}
	if e.manifest != nil {
		if err := e.manifest.Close(); err != nil {
			e.logger.Error("Failed to close image manifest", slog.String("error", err.Error()))
		}
		e.manifest = nil
	}
}

func (e *Engine) startWorkers(wg *sync.WaitGroup, workerChan <-chan string, resultsChan chan<- FileResult) {
	e.logger.Debug("Starting worker pool", "count", e.concurrency)
	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go e.processFilesWorker(wg, i, workerChan, resultsChan)
	}
}

func (e *Engine) processFilesWorker(wg *sync.WaitGroup, workerID int, workerChan <-chan string, resultsChan chan<- FileResult) {
	wLogger := e.logger.With(slog.Int("workerID", workerID))
	defer wg.Done()
	for {
		select {
		case filePath, ok := <-workerChan:
			if !ok {
				wLogger.Debug("Worker shutting down (channel closed)")
				return
			}
			resultsChan <- e.processOne(wLogger, filePath)
		case <-e.ctx.Done():
			wLogger.Debug("Worker shutting down (context cancelled)")
			return
		}
	}
}

// processOne runs the processor for one file, converting a panic into a
// failed result so one document can never take the run down.
func (e *Engine) processOne(wLogger *slog.Logger, filePath string) (result FileResult) {
	rel := relPath(e.processor.root, filePath)
	hooks := e.opts.EventHooks
	if hookErr := hooks.OnFileStatusUpdate(rel, StatusProcessing, "", 0); hookErr != nil {
		wLogger.Warn("Event hook OnFileStatusUpdate failed", slog.String("path", rel), slog.String("error", hookErr.Error()))
	}
	defer func() {
		if r := recover(); r != nil {
			wLogger.Error("Panic recovered in worker", "path", rel, "panicValue", r)
			msg := fmt.Sprintf("panic: %v", r)
			result = FileResult{
				Path:   rel,
				Status: StatusFailed,
				Error:  &ErrorInfo{Path: rel, Error: msg, IsFatal: e.opts.OnErrorMode == OnErrorStop},
				Audit:  []AuditRow{{Type: AuditProcessingFailed, File: rel, Message: msg}},
			}
		}
		message := ""
		switch {
		case result.Error != nil:
			message = result.Error.Error
		case result.Skipped != nil:
			message = result.Skipped.Details
		case result.Document != nil:
			message = result.Document.Output
		}
		if hookErr := hooks.OnFileStatusUpdate(rel, result.Status, message, result.Duration); hookErr != nil {
			wLogger.Warn("Event hook OnFileStatusUpdate failed", slog.String("path", rel), slog.String("error", hookErr.Error()))
		}
		if result.Error != nil && result.Error.IsFatal && !e.fatalOccurred.Swap(true) {
			wLogger.Info("Document failed with on-error=stop, signalling stop", "path", rel)
			e.cancelFunc()
		}
	}()
	result, _, _ = e.processor.ProcessFile(e.ctx, filePath)
	return result
}

// aggregateResults is the single writer of the audit log, image manifest
// and report lists.
func (e *Engine) aggregateResults(resultsChan <-chan FileResult, done chan<- struct{}) {
	defer close(done)
	for r := range resultsChan {
		e.aggregator.add(r)
		if e.aggregator.writeErr() != nil {
			continue
		}
		var err error
		if e.audit != nil {
			err = e.audit.Append(r.Audit...)
		}
		if err == nil && e.manifest != nil {
			err = e.manifest.Append(r.Uploads...)
		}
		if err != nil {
			e.logger.Error("Failed to write audit records", slog.String("error", err.Error()))
			e.aggregator.setWriteErr(err)
			e.fatalOccurred.Store(true)
			e.cancelFunc()
		}
	}
	e.logger.Debug("Result aggregator finished")
}

func (e *Engine) buildReport(startTime time.Time) Report {
	found := 0
	if e.walker != nil {
		found = e.walker.Found()
	}
	r := e.aggregator.getReport(startTime, found, e.fatalOccurred.Load())
	o := e.opts
	r.Summary.RunID = e.runID
	r.Summary.RootPath = o.resolve(".")
	r.Summary.InputPath = o.SourceDir()
	r.Summary.OutputPath = o.OutputPath
	r.Summary.MirrorPath = o.MirrorPath
	r.Summary.AuditLogPath = filepath.Join(o.OutputPath, AuditLogFileName)
	r.Summary.ProfileUsed = o.ProfileName
	r.Summary.ConfigFilePath = o.ConfigFilePath
	r.Summary.Concurrency = o.Concurrency
	r.Summary.AppVersion = o.AppVersion
	r.Summary.Flags = RunFlags{
		IncludeMDX:   o.IncludeMDX,
		UploadImages: o.UploadImages,
		Flat:         o.Flat,
		MoveMap:      o.MoveMapPath,
		AnnotateCode: o.AnnotateCode,
		OnError:      string(o.OnErrorMode),
	}
	if o.UploadImages {
		r.Summary.ImagesRoot = o.ImagesDir()
		r.Summary.Flags.Uploader = string(o.uploaderKind())
	}
	return r
}

// reportAggregator collects results during the run.
type reportAggregator struct {
	mu             sync.Mutex
	processedFiles []DocumentInfo
	skippedFiles   []SkippedInfo
	errors         []ErrorInfo
	warningCount   int
	uploadedCount  int
	auditErr       error
}

func newReportAggregator() *reportAggregator {
	return &reportAggregator{
		processedFiles: make([]DocumentInfo, 0, 128),
		skippedFiles:   make([]SkippedInfo, 0, 16),
		errors:         make([]ErrorInfo, 0, 16),
	}
}

func (a *reportAggregator) add(r FileResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case r.Error != nil:
		a.errors = append(a.errors, *r.Error)
	case r.Skipped != nil:
		a.skippedFiles = append(a.skippedFiles, *r.Skipped)
	case r.Document != nil:
		a.processedFiles = append(a.processedFiles, *r.Document)
		a.warningCount += len(r.Document.Warnings)
		a.uploadedCount += len(r.Uploads)
	}
}

func (a *reportAggregator) addSkipped(info SkippedInfo) {
	a.mu.Lock()
	a.skippedFiles = append(a.skippedFiles, info)
	a.mu.Unlock()
}

func (a *reportAggregator) setWriteErr(err error) {
	a.mu.Lock()
	a.auditErr = err
	a.mu.Unlock()
}

func (a *reportAggregator) writeErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.auditErr
}

// getFirstFatalError finds the first recorded error marked as fatal.
func (a *reportAggregator) getFirstFatalError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.errors {
		if e.IsFatal {
			return fmt.Errorf("fatal error processing file '%s': %s", e.Path, e.Error)
		}
	}
	return nil
}

func (a *reportAggregator) getReport(startTime time.Time, found int, fatalOccurred bool) Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	processed := append([]DocumentInfo(nil), a.processedFiles...)
	skipped := append([]SkippedInfo(nil), a.skippedFiles...)
	errs := append([]ErrorInfo(nil), a.errors...)
	now := time.Now().UTC()
	return Report{
		Summary: ReportSummary{
			TotalFilesScanned:  found,
			ProcessedCount:     len(processed),
			SkippedCount:       len(skipped),
			WarningCount:       a.warningCount,
			ErrorCount:         len(errs),
			UploadedCount:      a.uploadedCount,
			FatalErrorOccurred: fatalOccurred,
			StartedAt:          startTime.UTC(),
			FinishedAt:         now,
			DurationSeconds:    now.Sub(startTime.UTC()).Seconds(),
			SchemaVersion:      ReportSchemaVersion,
		},
		ProcessedFiles: processed,
		SkippedFiles:   skipped,
		Errors:         errs,
	}
}
