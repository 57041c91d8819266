package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := buildApp()
		a.orchestrator.Logout()
		fmt.Println("Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
