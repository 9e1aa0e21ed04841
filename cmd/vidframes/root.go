package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/maauso/vidframes/internal/bootstrap"
	"github.com/maauso/vidframes/internal/config"
	"github.com/maauso/vidframes/internal/pipeline"
	"github.com/maauso/vidframes/internal/progress"
)

func newRootCommand() *cobra.Command {
	var opts config.RunOptions

	rootCmd := &cobra.Command{
		Use:           "vidframes",
		Short:         "Sample still frames from every video in a split zip archive",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.PartPath, "part", "", "Path to any one part of the archive")
	flags.StringVar(&opts.OutputDir, "out", "", "Output root; frames go to <out>/<video>/frames")
	flags.Float64Var(&opts.FPS, "fps", 0, "Frames per second to sample")
	flags.BoolVar(&opts.Overwrite, "overwrite", false, "Re-decode every frame instead of resuming")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "DEBUG, INFO, WARNING or ERROR (default from LOG_LEVEL)")

	rootCmd.AddCommand(newPartsCommand(&opts.LogLevel))
	rootCmd.AddCommand(newEntriesCommand(&opts.LogLevel))

	return rootCmd
}

func runDecode(cmd *cobra.Command, opts config.RunOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	deps, logger, err := setup(cmd, opts.LogLevel)
	if err != nil {
		return err
	}

	summary, runErr := deps.Service.Run(cmd.Context(), pipeline.Request{
		PartPath:  opts.PartPath,
		OutputDir: opts.OutputDir,
		FPS:       opts.FPS,
		Overwrite: opts.Overwrite,
		Reporter:  newReporter(cmd.ErrOrStderr(), logger),
	})
	if summary != nil {
		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary, deps.Publish))
	}
	return runErr
}

// setup loads the environment config, applies the --log-level override and
// wires the dependencies. Logs go to the command's stderr.
func setup(cmd *cobra.Command, logLevel string) (*bootstrap.Dependencies, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := cfg.NewLogger(cmd.ErrOrStderr())
	logger.Debug("configuration loaded", slog.String("config", cfg.String()))

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return deps, logger, nil
}

// newReporter draws a progress bar when w is a terminal and logs otherwise.
func newReporter(w io.Writer, logger *slog.Logger) progress.Reporter {
	if isTerminal(w) {
		return progress.NewBarReporter(w)
	}
	return progress.NewLogReporter(logger)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
