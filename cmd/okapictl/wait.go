package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/okapictl/pkg/okapi"
)

// waitCmd represents the wait command
var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for Okapi to be ready",
	Long: `Wait for Okapi to be ready by polling /_/version.

This command will repeatedly check the gateway until it responds
successfully or the maximum number of retries is reached.

Example:
  okapictl wait
  okapictl wait --okapi-url http://localhost:9130 --retries 60`,
	Run: func(cmd *cobra.Command, args []string) {
		retries, _ := cmd.Flags().GetInt("retries")

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		client := okapi.NewClient(cfg.OkapiURL, cfg.Tenant, okapi.WithTimeout(2*time.Second), okapi.WithLogger(newLogger(cfg)))
		if err := waitForOkapi(cmd.Context(), client, retries, time.Second, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Okapi did not become ready: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().IntP("retries", "r", 90, "Number of retries")
}

func waitForOkapi(ctx context.Context, client *okapi.Client, retries int, interval time.Duration, out io.Writer) error {
	fmt.Fprintf(out, "Waiting for Okapi at %s to be ready...\n", client.BaseURL)

	for i := 0; i < retries; i++ {
		version, err := client.Health(ctx)
		if err == nil {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Okapi %s is ready!\n", version)
			return nil
		}

		fmt.Fprint(out, ".")
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	fmt.Fprintln(out)
	return fmt.Errorf("Okapi is not ready after %d attempts", retries)
}
