package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// permissionsCmd represents the permissions command
var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Inspect user permissions",
	Long:  `Inspect the permissions held by tenant users.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'permissions' requires a subcommand (list)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(permissionsCmd)
}
