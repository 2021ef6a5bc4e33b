package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"go-covid-pipeline/internal/config"
	"go-covid-pipeline/internal/pipeline"
	"go-covid-pipeline/internal/store"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// Run executes the command line in os.Args.
func Run() ExitCode {
	return RunArgs(os.Args[1:])
}

// RunArgs executes the command tree with args, cancelling on SIGINT or SIGTERM.
func RunArgs(args []string) ExitCode {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCodeError
	}
	return exitCodeSuccess
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	verbose    bool

	cfg config.Config
	log *slog.Logger
}

// NewRootCmd builds the covid command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "covid",
		Short:         "Load the OWID COVID-19 dataset and build its weekly series.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "set debug logging level")

	rootCmd.AddCommand(
		newLoadCmd(a),
		newWeeklyCmd(a),
		newLatestCmd(a),
		newFramesCmd(a),
		newCompareCmd(a),
		newCorrelateCmd(a),
		newRunCmd(a),
		newRunsCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if a.verbose {
		level = slog.LevelDebug
	}
	a.cfg = cfg
	a.log = newLogger(cmd.ErrOrStderr(), level)
	slog.SetDefault(a.log)
	return nil
}

// session returns a session over the configured loader. Download progress is
// drawn on progress when it is non-nil.
func (a *app) session(progress io.Writer) *pipeline.Session {
	return pipeline.NewSession(&pipeline.Loader{
		CachePath: a.cfg.CachePath,
		SourceURL: a.cfg.SourceURL,
		Timeout:   a.cfg.FetchTimeout,
		Logger:    a.log,
		Progress:  progress,
	})
}

// openStore opens the run store and returns its closer.
func (a *app) openStore() (func(), error) {
	if err := store.InitDB(a.cfg.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open run store %s: %w", a.cfg.DBPath, err)
	}
	return func() {
		if err := store.Close(); err != nil {
			a.log.Warn("Failed to close run store", "error", err)
		}
	}, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
