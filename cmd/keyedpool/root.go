package main

import (
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/keyedpool/internal/cliconfig"
)

var (
	bold  = color.New(color.Bold)
	red   = color.New(color.FgRed)
	green = color.New(color.FgGreen)
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configFile    string
	verbose       bool
	workers       int
	queueCapacity int
	attempts      int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "keyedpool",
		Short: "Apply a function to many inputs with a keyed worker pool",
		Long: `keyedpool pushes work through a fixed set of workers that share one queue.

Commands:
  map     Transform every input line and print the results in input order
  bench   Compare one workload across several worker counts

Defaults come from --config (YAML) and are overridden by flags.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file with pool defaults")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log pool activity to stderr")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Number of workers (default from config, else GOMAXPROCS)")
	flags.IntVar(&opts.queueCapacity, "queue-capacity", 0, "Bound the work queue (0 = unbounded)")
	flags.IntVar(&opts.attempts, "attempts", 0, "Attempts per task, including the first")

	cmd.AddCommand(newMapCmd(opts), newBenchCmd(opts))
	return cmd
}

// poolConfig loads the config file, if any, and overlays explicitly set flags.
func (o *rootOptions) poolConfig(cmd *cobra.Command) (cliconfig.Config, error) {
	cfg := cliconfig.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = cliconfig.Read(o.configFile); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("queue-capacity") {
		cfg.QueueCapacity = o.queueCapacity
	}
	if flags.Changed("attempts") {
		cfg.Retry.Attempts = o.attempts
	}
	return cfg, cfg.Validate()
}

// logger writes pool logs to w: errors by default, everything with --verbose.
func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelError
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
