package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/okapictl/pkg/config"
)

// permissionsListCmd represents the permissions list command
var permissionsListCmd = &cobra.Command{
	Use:   "list [username]",
	Short: "List the permissions held by a user",
	Long: `List the permissions held by a user, one per line, followed by the
total count. Defaults to the configured target user.

Example:
  okapictl permissions list
  okapictl permissions list librarian`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadValidConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		username := cfg.Target()
		if len(args) == 1 {
			username = args[0]
		}

		if err := listPermissions(cmd.Context(), cfg, username, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list permissions: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	permissionsCmd.AddCommand(permissionsListCmd)
}

func listPermissions(ctx context.Context, cfg *config.Config, username string, out io.Writer) error {
	client, err := loggedInClient(ctx, cfg)
	if err != nil {
		return err
	}

	user, err := client.FindUser(ctx, username)
	if err != nil {
		return err
	}

	perms, err := client.Permissions(ctx, user.ID)
	if err != nil {
		return err
	}

	names := append([]string(nil), perms.PermissionNames...)
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	fmt.Fprintf(out, "Number of permissions: %d\n", perms.TotalRecords)
	return nil
}
