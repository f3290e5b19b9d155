// Package cli runs a configured migration with the progress surface the
// options select: the TUI, verbose logging or plain console lines.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmadden/readme-docs-migration-github/internal/cli/hooks"
	"github.com/jmadden/readme-docs-migration-github/internal/cli/ui"
	"github.com/jmadden/readme-docs-migration-github/internal/cli/watch"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter"
)

// Run performs the migration, or keeps re-running it in watch mode until ctx
// is cancelled.
func Run(ctx context.Context, opts converter.Options, logger *slog.Logger) error {
	return run(ctx, opts, logger, os.Stdout)
}

func run(ctx context.Context, opts converter.Options, logger *slog.Logger, out io.Writer) error {
	if opts.TuiEnabled {
		return runTUI(ctx, opts, logger, out)
	}
	mode := hooks.ModeConsole
	if opts.Verbose {
		mode = hooks.ModeVerbose
	}
	opts.EventHooks = hooks.NewCLIHooks(logger, mode, nil, out)

	once := func(ctx context.Context) error {
		report, err := converter.GenerateDocs(ctx, opts)
		printSummary(out, report, err)
		return err
	}
	if opts.WatchMode {
		return watchLoop(ctx, opts, once)
	}
	return once(ctx)
}

func runTUI(ctx context.Context, opts converter.Options, logger *slog.Logger, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Log records would tear the alternate screen; warnings and errors are
	// held back and printed once the TUI is gone.
	var logs bytes.Buffer
	opts.Logger = slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})

	model := ui.NewModel(opts.AppVersion, !opts.WatchMode)
	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(os.Stderr), tea.WithAltScreen())
	opts.EventHooks = hooks.NewCLIHooks(logger, hooks.ModeTUI, program, nil)

	// Only the last report is printed once the TUI is gone.
	var last converter.Report
	var lastErr error
	once := func(ctx context.Context) error {
		last, lastErr = converter.GenerateDocs(ctx, opts)
		return lastErr
	}

	done := make(chan error, 1)
	go func() {
		var err error
		if opts.WatchMode {
			err = watchLoop(ctx, opts, once)
		} else {
			err = once(ctx)
		}
		done <- err
		// A run that fails before reporting never sends RunCompleteMsg.
		if !opts.WatchMode {
			program.Quit()
		}
	}()

	_, tuiErr := program.Run()
	// Quitting the TUI stops the run; in-flight documents still finish.
	cancel()
	runErr := <-done

	if tuiErr != nil && !errors.Is(tuiErr, tea.ErrProgramKilled) {
		logger.Error("TUI exited with an error", slog.String("error", tuiErr.Error()))
	}
	if logs.Len() > 0 {
		_, _ = io.Copy(os.Stderr, &logs)
	}
	printSummary(out, last, lastErr)
	return runErr
}

func watchLoop(ctx context.Context, opts converter.Options, run watch.RunFunc) error {
	w := watch.New(watch.Config{
		Root:       opts.SourceDir(),
		Exclude:    opts.DestinationRoots(),
		Extensions: opts.SourceExtensions(),
		IgnoreFile: converter.IgnoreFileName,
		Debounce:   opts.WatchDebounce,
	}, run, opts.Logger)
	return w.Run(ctx)
}

func printSummary(out io.Writer, report converter.Report, err error) {
	s := report.Summary
	if s.RunID == "" {
		// The run never started, so there is nothing to summarize.
		return
	}
	fmt.Fprintf(out, "\nConverted %d, skipped %d, failed %d, warnings %d", s.ProcessedCount, s.SkippedCount, s.ErrorCount, s.WarningCount)
	if s.Flags.UploadImages {
		fmt.Fprintf(out, ", images uploaded %d", s.UploadedCount)
	}
	fmt.Fprintf(out, " in %.2fs\n", s.DurationSeconds)
	switch {
	case err != nil:
		fmt.Fprintf(out, "Run stopped: %v\n", err)
	case s.ErrorCount > 0:
		fmt.Fprintf(out, "%d document(s) failed.\n", s.ErrorCount)
	}
	if s.AuditLogPath != "" {
		fmt.Fprintf(out, "Audit log: %s\n", s.AuditLogPath)
	}
}
