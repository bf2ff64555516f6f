package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	gokitlog "github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/okapictl/pkg/config"
	"github.com/doodlesbykumbi/okapictl/pkg/okapi"
	"github.com/doodlesbykumbi/okapictl/pkg/provision"
)

// grantCmd represents the grant command
var grantCmd = &cobra.Command{
	Use:   "grant [permission...]",
	Short: "Grant permissions to a user",
	Long: `Grant permissions to a user of the configured tenant.

Logs in, resolves the target user, prints the current permission count,
adds each permission and prints the count again. Permissions given as
arguments replace the configured list. A failed grant is reported and the
remaining permissions are still attempted.

Example:
  okapictl grant
  okapictl grant --user librarian ui-users.view ui-users.edit
  okapictl grant --dry-run --output json`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadGrantConfig(cmd, args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		recorder, closeRecorder, err := newRecorder(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

		opts := grantOptionsFromFlags(cmd)
		_, err = runGrant(cmd.Context(), cfg, opts, os.Stdout, os.Stderr, newLogger(cfg), recorder)
		closeRecorder()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Provisioning failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(grantCmd)
	addGrantFlags(grantCmd)
}

func addGrantFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "User receiving the permissions (default the login user)")
	cmd.Flags().Bool("dry-run", false, "Report what would be granted without granting")
	cmd.Flags().Bool("force", false, "Grant permissions the user already holds")
	cmd.Flags().Bool("strict", false, "Exit non-zero when any grant fails")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
}

type grantOptions struct {
	DryRun bool
	Force  bool
	Strict bool
	Output string
}

func grantOptionsFromFlags(cmd *cobra.Command) grantOptions {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	strict, _ := cmd.Flags().GetBool("strict")
	output, _ := cmd.Flags().GetString("output")
	return grantOptions{DryRun: dryRun, Force: force, Strict: strict, Output: output}
}

// loadGrantConfig loads configuration, applies the grant flags and
// arguments, prompts for a missing password and validates the result.
func loadGrantConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := applyGrantArgs(cmd, cfg, args); err != nil {
		return nil, err
	}
	if err := promptPassword(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func applyGrantArgs(cmd *cobra.Command, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		if err := cfg.Override("permissions", strings.Join(args, ",")); err != nil {
			return err
		}
	}
	if f := cmd.Flags().Lookup("user"); f != nil && f.Changed {
		if err := cfg.Override("target_user", f.Value.String()); err != nil {
			return err
		}
	}
	if force, _ := cmd.Flags().GetBool("force"); force {
		if err := cfg.Override("check_existing", "false"); err != nil {
			return err
		}
	}
	return nil
}

// runGrant provisions the configured permissions. Console lines go to
// console and, in json mode, the report is written to out.
func runGrant(ctx context.Context, cfg *config.Config, opts grantOptions, out, console io.Writer, logger gokitlog.Logger, auditor provision.Auditor) (*provision.Report, error) {
	if opts.Output != "text" && opts.Output != "json" {
		return nil, fmt.Errorf("unsupported output format %q", opts.Output)
	}
	if opts.Output == "text" {
		console = out
	}

	client := newClient(cfg, logger)
	p := provision.New(client, provision.Options{
		OkapiURL: cfg.OkapiURL,
		Tenant:   cfg.Tenant,
		Credentials: okapi.Credentials{
			Username: cfg.Username,
			Password: cfg.Password,
		},
		TargetUser:    cfg.TargetUser,
		Permissions:   cfg.Permissions,
		CheckExisting: cfg.CheckExisting && !opts.Force,
		DryRun:        opts.DryRun,
	}, console, provision.WithAuditor(auditor), provision.WithLogger(logger))

	report, err := p.Run(ctx)
	if err != nil {
		return report, err
	}

	if opts.Output == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return report, err
		}
		fmt.Fprintln(out, string(data))
	}

	if failed := report.Failed(); opts.Strict && len(failed) > 0 {
		return report, fmt.Errorf("%d of %d permission grants failed", len(failed), len(report.Results))
	}
	return report, nil
}
