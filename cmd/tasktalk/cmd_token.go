package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/tasktalk/internal/auth"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime; 0 means no expiry")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development JWT for the current user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		verifier, err := auth.NewVerifier(loadConfig().Auth.JWTSecret)
		if err != nil {
			return fmt.Errorf("%w: set auth.jwt_secret or JWT_SECRET", err)
		}
		token, err := verifier.Issue(currentUser(), ttl, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, token)
		return nil
	},
}
