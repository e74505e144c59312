// Command imgopt optimizes image files from the command line with the same
// engine the api and worker use.
package main

import (
	"fmt"
	"os"

	"github.com/edashow/mediaflow/internal/logging"
	"github.com/edashow/mediaflow/internal/optimizer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	err := newRootCmd().Execute()
	optimizer.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		logger   *zap.Logger
	)

	root := &cobra.Command{
		Use:           "imgopt",
		Short:         "Resize, re-encode and watermark images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger = logging.Must(logLevel, true)
			if err := optimizer.Startup(); err != nil {
				return fmt.Errorf("start image backend: %w", err)
			}
			logger.Debug("image backend ready", zap.String("backend", optimizer.BackendName()))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "zap log level")

	root.AddCommand(newOptimizeCmd(func() *zap.Logger { return logger }))
	return root
}
