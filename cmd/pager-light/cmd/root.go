package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/pager-light/internal/logger"
	"github.com/oshokin/pager-light/internal/service/poller"
	"github.com/oshokin/pager-light/internal/version"
)

var (
	// configPath stores the path to the optional configuration YAML file.
	configPath string
	// logLevel overrides LOG_LEVEL.
	logLevel string
	// nightOnly forces night-time gating.
	nightOnly bool
	// testMode triggers the light on every eligible cycle.
	testMode bool

	// rootCmd represents the base command for polling incidents.
	rootCmd = &cobra.Command{
		Use:   "pager-light",
		Short: "Flash a Hue light while PagerDuty has triggered incidents.",
		Long: `Polls PagerDuty every 30 seconds for triggered incidents and, when there are any,
flashes a Philips Hue light red and blue, holds it white for ten seconds and
switches it off.

Settings come from an optional YAML file overridden by the environment:
PD_API_KEY, HUE_HOST, HUE_USERNAME and LAMP are required; NIGHT_ONLY,
PD_USER_FILTER, LOG_LEVEL, TEST_MODE, POLL_INTERVAL and HTTP_TIMEOUT are optional.

The process exits with status 1 on missing settings or when PagerDuty cannot be
reached; run it under a supervisor that restarts it.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &poller.Options{
				ConfigPath: configPath,
				LogLevel:   logLevel,
				NightOnly:  nightOnly,
				TestMode:   testMode,
			}

			return poller.Run(ctx, options)
		},
	}
)

// Execute runs the pager-light CLI and exits with status 1 on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	ctx := logger.WithName(context.Background(), "pager-light")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Logs at fatal level and exits with status 1.
		logger.FatalKV(ctx, "Stopping pager-light", "error", err)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default pager-light.yaml if present)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level, overrides LOG_LEVEL")
	rootCmd.Flags().BoolVarP(&nightOnly, "night-only", "n", false, "only poll between 21:00 and 07:59, overrides NIGHT_ONLY")

	// Hidden test flag to verify the light wiring end to end.
	rootCmd.Flags().BoolVarP(&testMode, "test", "t", false, "flash the light on every cycle")

	err := rootCmd.Flags().MarkHidden("test")
	if err != nil {
		panic(err)
	}
}
