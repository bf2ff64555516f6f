package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/okapictl/pkg/config"
)

// configurationShowCmd represents the configuration show command
var configurationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configuration attributes and their sources",
	Long: `Show okapictl configuration attributes and their sources.

Each attribute is reported with the layer it came from: default, file,
environment or flag. The password is masked.

Config file location: /etc/okapictl/okapictl.yml (or OKAPICTL_CONFIG_PATH)

Example:
  okapictl configuration show
  okapictl configuration show --output json`,
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		if err := showConfiguration(cfg, output, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to show configuration: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	configurationCmd.AddCommand(configurationShowCmd)
	configurationShowCmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
}

func showConfiguration(cfg *config.Config, output string, out io.Writer) error {
	switch output {
	case "json":
		jsonOutput, err := cfg.FormatJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, jsonOutput)
	case "text":
		fmt.Fprint(out, cfg.FormatText())
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}
	return nil
}
