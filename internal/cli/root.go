// Package cli wires the configuration, logger and services into the scraper
// command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/baont182004/BiLSTM-defacement/internal/config"
	"github.com/baont182004/BiLSTM-defacement/internal/logger"
	"github.com/baont182004/BiLSTM-defacement/internal/scraper"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const appName = "scraper"

// exitError carries a process exit code without printing anything more
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// app holds what the subcommands share
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string

	cfg config.Config
	log zerolog.Logger

	// launcher and crawlDriver override how browsers start; nil launches Chrome
	launcher    scraper.Launcher
	crawlDriver crawlDriverFunc
}

// NewRootCmd builds the command tree writing results to stdout and
// diagnostics to stderr
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	return newApp(stdout, stderr).rootCmd()
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, log: zerolog.Nop()}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Headless browser text extraction and sequential mirror crawling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			level := a.logLevel
			if level == "" {
				level = os.Getenv("SCRAPER_LOG_LEVEL")
			}
			a.log = logger.New(a.stderr, level, a.logFormat)
			return nil
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", logger.FormatConsole, "log format (console or json)")

	root.AddCommand(a.extractCmd(), a.crawlCmd())
	return root
}

// Execute runs the command line and returns the process exit code
func Execute(ctx context.Context) int {
	cmd := NewRootCmd(os.Stdout, os.Stderr)
	return exitCode(cmd.ExecuteContext(ctx), os.Stderr)
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
