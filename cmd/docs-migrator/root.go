package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmadden/readme-docs-migration-github/internal/cli"
	"github.com/jmadden/readme-docs-migration-github/internal/cli/config"
)

// Set at build time with -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// runFunc is replaced in tests.
var runFunc = cli.Run

func newRootCmd() *cobra.Command {
	var (
		cfgFile     string
		profileName string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "docs-migrator -i <sourceDir> -o <destinationDir>",
		Short: "Migrates Docusaurus Markdown/MDX documentation to ReadMe Markdown.",
		Long: `docs-migrator converts a tree of Docusaurus documents into ReadMe's Markdown
dialect. It rewrites frontmatter, converts admonitions and tabs, strips
scripts and unsupported components, lowers simple HTML to Markdown and can
re-host local images.

Every removed or unresolved construct is recorded in migration_audit.csv in
each destination directory; migration_report.json summarizes the run.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			opts, logger, err := config.LoadAndValidate(cfgFile, profileName, version, verbose, cmd.Flags())
			if err != nil {
				return err
			}
			if opts.TuiEnabled && !term.IsTerminal(int(os.Stdout.Fd())) {
				logger.Debug("Output is not a terminal, disabling the TUI")
				opts.TuiEnabled = false
			}
			return runFunc(ctx, opts, logger)
		},
	}
	cmd.SetVersionTemplate(`{{.Name}} version {{.Version}}` + "\n")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file (default: docs-migrator.yaml in ., ~/.config/docs-migrator/, ~/.docs-migrator/)")
	cmd.PersistentFlags().StringVar(&profileName, "profile", "", "Configuration profile to apply")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging, one log line per document (disables the TUI)")
	config.DefineFlags(cmd.Flags())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
