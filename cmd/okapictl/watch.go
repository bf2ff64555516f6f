package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-run grant whenever a configuration file changes",
	Long: `Watch an okapictl.yml file and provision its permissions every time it
is written. A run is made on startup. Invalid configurations and failed
runs are reported and the watch continues until SIGINT or SIGTERM.

Example:
  okapictl watch /etc/okapictl/okapictl.yml
  okapictl watch --force ./okapictl.yml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		filename := args[0]

		recorder, closeRecorder, err := newRecorder(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

		opts := grantOptionsFromFlags(cmd)
		run := func(ctx context.Context) error {
			cfg, err := loadConfigFrom(cmd, filename)
			if err != nil {
				return err
			}
			if err := applyGrantArgs(cmd, cfg, nil); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			_, err = runGrant(ctx, cfg, opts, os.Stdout, os.Stderr, newLogger(cfg), recorder)
			return err
		}

		err = watchFile(cmd.Context(), filename, run, os.Stdout, os.Stderr)
		closeRecorder()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to watch configuration: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addGrantFlags(watchCmd)
}

// watchFile calls run once and then after every write to filename, until ctx
// is cancelled. The parent directory is watched so that editors replacing
// the file are noticed.
func watchFile(ctx context.Context, filename string, run func(context.Context) error, out, errOut io.Writer) error {
	filename = filepath.Clean(filename)
	if _, err := os.Stat(filename); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(filename)); err != nil {
		return fmt.Errorf("failed to watch file %s: %w", filename, err)
	}

	fmt.Fprintf(out, "Watching %s for configuration changes\n", filename)
	runOnce(ctx, run, out, errOut)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				fmt.Fprintf(out, "[%s] File modified, provisioning...\n", time.Now().Format(time.RFC3339))
				runOnce(ctx, run, out, errOut)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(errOut, "Watcher error: %v\n", err)
		case <-ctx.Done():
			fmt.Fprintln(out, "\nShutting down...")
			return nil
		}
	}
}

func runOnce(ctx context.Context, run func(context.Context) error, out, errOut io.Writer) {
	if err := run(ctx); err != nil {
		fmt.Fprintf(errOut, "Provisioning failed: %v\n", err)
		return
	}
	fmt.Fprintln(out, "Provisioning finished")
}
