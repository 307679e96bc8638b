// Package cli implements the governor command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RunFunc executes "governor run" with the decoded configuration.
type RunFunc func(ctx context.Context, cfg Config, logger *zap.Logger) error

// NewRootCmd builds the governor command tree. run is invoked by the run
// subcommand after the configuration is loaded; tests substitute it.
func NewRootCmd(run RunFunc) (*cobra.Command, error) {
	root := &cobra.Command{
		Use:           "governor",
		Short:         "Fixed-interval token bucket demo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configFile string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run consumer workers against a shared token bucket",
		Long: `Start a token bucket that resets to --capacity every --interval and a pool of
--workers workers that each take --request tokens per iteration. Every tick is
logged and, with --redis-addr, published to Redis. Runs until interrupted.`,
		Args: cobra.NoArgs,
	}
	runCmd.Flags().StringVar(&configFile, "config-file", "", "YAML config file.")

	v, err := BindFlags(runCmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("error while binding flags: %w", err)
	}

	runCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := Load(v, configFile)
		if err != nil {
			return err
		}
		if _, err := cfg.Validate(); err != nil {
			return err
		}

		logger, err := NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		return run(cmd.Context(), cfg, logger)
	}

	root.AddCommand(runCmd)
	return root, nil
}

// Execute runs the command line until SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, err := NewRootCmd(Run)
	if err == nil {
		err = cmd.ExecuteContext(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "governor:", err)
		stop()
		os.Exit(1)
	}
}
