package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmadden/readme-docs-migration-github/internal/testutil"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter"
)

func testOptions(t *testing.T) converter.Options {
	t.Helper()
	root := t.TempDir()
	testutil.CreateDummyFile(t, filepath.Join(root, "docs", "guide.md"), "---\nsidebar_label: Guide\n---\n# Intro\n\nHello.\n")
	return converter.Options{
		RootPath:    root,
		InputPath:   "docs",
		OutputPath:  filepath.Join(root, "out"),
		Concurrency: 1,
		Logger:      slog.NewTextHandler(io.Discard, nil),
	}
}

func TestRun_Console(t *testing.T) {
	opts := testOptions(t)
	var out bytes.Buffer

	err := run(context.Background(), opts, slog.New(opts.Logger), &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "✓ guide.md")
	assert.Contains(t, text, "Converted 1, skipped 0, failed 0")
	assert.Contains(t, text, "Audit log: "+filepath.Join(opts.OutputPath, converter.AuditLogFileName))
	assert.FileExists(t, filepath.Join(opts.OutputPath, "guide.md"))
}

func TestRun_ConsoleReportsFailures(t *testing.T) {
	opts := testOptions(t)
	testutil.CreateDummyFile(t, filepath.Join(opts.RootPath, "docs", "broken.md"), "<Note>\n\ntext\n")
	var out bytes.Buffer

	err := run(context.Background(), opts, slog.New(opts.Logger), &out)
	require.NoError(t, err, "a failed document does not fail the run")

	text := out.String()
	assert.Contains(t, text, "✗ broken.md")
	assert.Contains(t, text, "failed 1")
	assert.Contains(t, text, "1 document(s) failed.")
}

func TestRun_StopOnError(t *testing.T) {
	opts := testOptions(t)
	opts.OnErrorMode = converter.OnErrorStop
	testutil.CreateDummyFile(t, filepath.Join(opts.RootPath, "docs", "broken.md"), "<Note>\n\ntext\n")
	var out bytes.Buffer

	err := run(context.Background(), opts, slog.New(opts.Logger), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, converter.ErrFatalRun)
	assert.Contains(t, out.String(), "Run stopped:")
}

func TestRun_InvalidOptionsPrintNoSummary(t *testing.T) {
	opts := testOptions(t)
	opts.OutputPath = "relative"
	var out bytes.Buffer

	err := run(context.Background(), opts, slog.New(opts.Logger), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, converter.ErrConfigValidation)
	assert.Empty(t, out.String())
}

func TestRun_Verbose(t *testing.T) {
	opts := testOptions(t)
	opts.Verbose = true
	var logs, out bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	require.NoError(t, run(context.Background(), opts, logger, &out))
	assert.Contains(t, logs.String(), `"path":"guide.md"`)
	assert.NotContains(t, out.String(), "✓ guide.md")
	assert.Contains(t, out.String(), "Converted 1")
}

func TestRun_WatchStopsOnCancel(t *testing.T) {
	opts := testOptions(t)
	opts.WatchMode = true
	opts.WatchDebounce = 20 * time.Millisecond
	var out bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := run(ctx, opts, slog.New(opts.Logger), &out)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(opts.OutputPath, "guide.md"))
	assert.Contains(t, out.String(), "Converted 1")
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, converter.Report{}, nil)
	assert.Empty(t, out.String())

	report := converter.Report{Summary: converter.ReportSummary{
		RunID:           "id",
		ProcessedCount:  3,
		UploadedCount:   2,
		DurationSeconds: 1.5,
		AuditLogPath:    "/out/migration_audit.csv",
		Flags:           converter.RunFlags{UploadImages: true},
	}}
	printSummary(&out, report, nil)
	assert.Equal(t, "\nConverted 3, skipped 0, failed 0, warnings 0, images uploaded 2 in 1.50s\nAudit log: /out/migration_audit.csv\n", out.String())
}
