package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oglimmer/mdalert/config"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mdalert",
	Short: "mdalert watches your monitors and notifies you when one goes down",
	Long: `mdalert signs in to the monitoring backend via OpenID Connect, polls
the alert endpoint, and raises a desktop notification the moment a monitor
transitions to down. Each outage is notified exactly once until the monitor
recovers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}

		logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
		if cfg.LogPretty {
			logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
