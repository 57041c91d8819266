package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the notifier daemon",
	Long: `Starts the callback listener and the alert poller, restores a stored
session when one exists, and opens the browser sign-in when it does not.
Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a := buildApp()

		a.callback.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := a.callback.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("callback listener shutdown failed")
			}
		}()

		if err := a.orchestrator.RestoreSession(ctx); err != nil {
			logger.Warn().Err(err).Msg("session restore failed")
		}
		if !a.orchestrator.Snapshot().Authenticated() {
			if err := a.orchestrator.Login(ctx); err != nil {
				return err
			}
			logger.Info().Msg("waiting for sign-in in the browser")
		}

		go a.orchestrator.WatchExpiry(ctx)
		a.poller.Run(ctx, a.orchestrator.Cell())

		logger.Info().Msg("shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
