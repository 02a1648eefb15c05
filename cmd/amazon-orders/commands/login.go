package commands

import (
	"log/slog"

	"amazonorders/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Runs the auth flow and persists the session cookies.",
	Run: func(cmd *cobra.Command, args []string) {
		session := createSession(cmd.Context())

		err := session.Login(cmd.Context())
		if err != nil {
			serviceutil.Fatal("login failed", err)
		}
		slog.Info("logged in, session cookies persisted")
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Signs the persisted session out and clears local cookies.",
	Run: func(cmd *cobra.Command, args []string) {
		session := createSession(cmd.Context())

		err := session.Logout(cmd.Context())
		if err != nil {
			serviceutil.Fatal("logout failed", err)
		}
		slog.Info("logged out, local session cleared")
	},
}
