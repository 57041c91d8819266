package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oglimmer/mdalert/internal/keychain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := buildApp()

		cred := a.store.Load()
		if cred == nil {
			fmt.Println("Not signed in.")
			return nil
		}

		fmt.Printf("Access token:  %s\n", keychain.TokenPrefix(cred.AccessToken))
		if cred.HasRefreshToken() {
			fmt.Println("Refresh token: stored")
		} else {
			fmt.Println("Refresh token: none")
		}
		if cred.ExpiresAt.IsZero() {
			fmt.Println("Expiry:        unknown (treated as expired)")
		} else {
			fmt.Printf("Expiry:        %s\n", cred.ExpiresAt.Local().Format(time.RFC1123))
		}
		if cred.Expired(time.Now()) {
			fmt.Println("Session is expired; it will be refreshed on the next run.")
		} else {
			fmt.Println("Session is valid.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
