package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/bulkload/config"
)

// Exit codes.
const (
	exitProblems = 1
	exitRejected = 2
)

// exitError ends the command with a specific exit code. err may be nil when
// the report already explains the outcome.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// globals holds the persistent flags.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string
}

// load returns the configuration named by --config, else the nearest
// bulkload.yaml, else the defaults. Log flags override the file.
func (g *globals) load() (*config.Config, error) {
	var cfg *config.Config
	if g.configPath != "" {
		c, err := config.Load(g.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	} else if c, err := config.LoadFromDir("."); err == nil {
		cfg = c
	} else {
		cfg = config.Default()
	}

	if g.logLevel != "" || g.logFormat != "" {
		if cfg.Log == nil {
			cfg.Log = &config.LogConfig{}
		}
		if g.logLevel != "" {
			cfg.Log.Level = g.logLevel
		}
		if g.logFormat != "" {
			cfg.Log.Format = g.logFormat
		}
	}
	return cfg, nil
}

// logger writes to the command's stderr so that reports on stdout stay clean.
func logger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return cfg.Log.NewLogger(cmd.ErrOrStderr())
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "bulkload",
		Short: "Load interlinked records into a backend",
		Long: `Load a batch of records that reference each other, possibly in cycles,
into a backend that checks references and cardinalities on every create.

Cycles are broken by stashing flexible values, which are written back once
every record exists. A schema whose cycles hold a mandatory property is
rejected before anything is sent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file or directory (default: nearest bulkload.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "log format (json, text)")

	root.AddCommand(
		newValidateCmd(g),
		newPlanCmd(g),
		newRunCmd(g),
		newCheckCmd(g),
		newServeCmd(g),
	)
	return root
}

// out returns the command's output writer.
func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
