// Package converter migrates a tree of Docusaurus Markdown/MDX documents into
// ReadMe-flavored Markdown.
//
// GenerateDocs walks the source directory, runs every document through the
// conversion pipeline (callouts, embedded syntax cleanup, HTML lowering, tabs,
// images, frontmatter), writes the results to the destination roots and
// finishes with the directory landing and ordering files, the audit log and
// the run report.
package converter

import (
	"context"
	"log/slog"
)

// GenerateDocs is the main entry point of the library. The returned report is
// always populated; the error is non-nil only when the run itself could not
// complete (invalid options, unwritable destination, audit log failure,
// cancellation or on-error=stop).
func GenerateDocs(ctx context.Context, opts Options) (Report, error) {
	engine, err := NewEngine(ctx, opts)
	if err != nil {
		if opts.Logger != nil {
			slog.New(opts.Logger).Error("Invalid migration options", slog.String("error", err.Error()))
		}
		return Report{}, err
	}
	return engine.Run()
}
