package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/okapictl/pkg/config"
	"github.com/doodlesbykumbi/okapictl/pkg/okapi"
	"github.com/doodlesbykumbi/okapictl/pkg/session"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print the session token",
	Long: `Log in to the configured tenant and print the x-okapi-token.

With --claims the subject, user id, tenant and expiry decoded from the
token are printed instead. The token signature is not verified.

Example:
  okapictl login
  export OKAPI_TOKEN=$(okapictl login)
  okapictl login --claims`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadValidConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		claims, _ := cmd.Flags().GetBool("claims")
		if err := login(cmd.Context(), cfg, claims, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().Bool("claims", false, "Print the decoded token claims instead of the token")
}

// loadValidConfig loads configuration, prompts for a missing password and
// validates it.
func loadValidConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := promptPassword(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// loggedInClient returns a client that has already authenticated.
func loggedInClient(ctx context.Context, cfg *config.Config) (*okapi.Client, error) {
	client := newClient(cfg, newLogger(cfg))
	if _, err := client.Login(ctx, okapi.Credentials{Username: cfg.Username, Password: cfg.Password}); err != nil {
		return nil, fmt.Errorf("login as %s: %w", cfg.Username, err)
	}
	return client, nil
}

func login(ctx context.Context, cfg *config.Config, showClaims bool, out io.Writer) error {
	client, err := loggedInClient(ctx, cfg)
	if err != nil {
		return err
	}

	if !showClaims {
		fmt.Fprintln(out, client.Token())
		return nil
	}

	sess := session.New(cfg.Tenant, cfg.Username, client.Token())
	claims, ok := sess.Claims()
	if !ok {
		return fmt.Errorf("token is not a JWT")
	}

	fmt.Fprintf(out, "Subject:  %s\n", claims.Subject)
	fmt.Fprintf(out, "User ID:  %s\n", claims.UserID)
	fmt.Fprintf(out, "Tenant:   %s\n", claims.Tenant)
	if !claims.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "Expires:  %s\n", claims.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return nil
}
