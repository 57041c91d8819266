package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oglimmer/mdalert/internal/auth"
)

var loginTimeout time.Duration

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in via the browser and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
		defer cancel()

		a := buildApp()

		a.callback.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer shutdownCancel()
			_ = a.callback.Shutdown(shutdownCtx)
		}()

		updates := a.orchestrator.Cell().Subscribe()
		if err := a.orchestrator.Login(ctx); err != nil {
			return err
		}
		fmt.Println("Complete the sign-in in your browser...")

		for {
			select {
			case <-ctx.Done():
				return fmt.Errorf("sign-in timed out after %s", loginTimeout)
			case snap := <-updates:
				switch {
				case snap.Authenticated():
					snap = awaitIdentity(ctx, updates, snap, identityWait)
					name := "unknown"
					if snap.Identity != nil {
						name = snap.Identity.DisplayName()
					}
					fmt.Printf("Signed in as %s\n", name)
					return nil
				case snap.State == auth.StateUnauthenticated && snap.Err != nil:
					return snap.Err
				}
			}
		}
	},
}

const identityWait = 3 * time.Second

// awaitIdentity gives the post-login userinfo fetch a moment to land so the
// greeting can use a real name. The Authenticated snapshot is published
// before userinfo resolves, and the coalescing subscription may have handed
// us that early one.
func awaitIdentity(ctx context.Context, updates <-chan auth.Snapshot, snap auth.Snapshot, wait time.Duration) auth.Snapshot {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for snap.Authenticated() && snap.Identity == nil {
		select {
		case <-ctx.Done():
			return snap
		case <-timer.C:
			return snap
		case next := <-updates:
			snap = next
		}
	}
	return snap
}

func init() {
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 2*time.Minute,
		"how long to wait for the browser sign-in to complete")
	rootCmd.AddCommand(loginCmd)
}
