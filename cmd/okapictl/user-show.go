package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/okapictl/pkg/config"
)

// userShowCmd represents the user show command
var userShowCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Show the user record for a username",
	Long: `Resolve a username to its user record.

Example:
  okapictl user show diku_admin`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadValidConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		if err := showUser(cmd.Context(), cfg, args[0], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to show user: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	userCmd.AddCommand(userShowCmd)
}

func showUser(ctx context.Context, cfg *config.Config, username string, out io.Writer) error {
	client, err := loggedInClient(ctx, cfg)
	if err != nil {
		return err
	}

	user, err := client.FindUser(ctx, username)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "ID:        %s\n", user.ID)
	fmt.Fprintf(out, "Username:  %s\n", user.Username)
	fmt.Fprintf(out, "Active:    %t\n", user.Active)
	return nil
}
