package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gokitlog "github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/okapictl/pkg/audit"
	"github.com/doodlesbykumbi/okapictl/pkg/config"
	"github.com/doodlesbykumbi/okapictl/pkg/logging"
	"github.com/doodlesbykumbi/okapictl/pkg/okapi"
)

var rootCmd = &cobra.Command{
	Use:   "okapictl",
	Short: "Grant permissions to Okapi tenant users",
	Long: `okapictl provisions permissions for users of an Okapi-fronted tenant.

Configuration is read from okapictl.yml, then the environment, then flags.
Run "okapictl configuration show" to see the effective values.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// flagAttributes maps persistent flags onto configuration attributes
var flagAttributes = map[string]string{
	"okapi-url": "okapi_url",
	"tenant":    "tenant",
	"username":  "username",
	"log-level": "log_level",
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to okapictl.yml (default $OKAPICTL_CONFIG_PATH/okapictl.yml)")
	rootCmd.PersistentFlags().String("okapi-url", "", "Okapi base URL")
	rootCmd.PersistentFlags().StringP("tenant", "t", "", "Okapi tenant")
	rootCmd.PersistentFlags().StringP("username", "u", "", "Login username")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig resolves configuration from file, environment and the
// persistent flags of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return loadConfigFrom(cmd, path)
}

// loadConfigFrom loads configuration from path and applies the persistent
// flags of cmd on top.
func loadConfigFrom(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	for flag, attr := range flagAttributes {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := cfg.Override(attr, f.Value.String()); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) gokitlog.Logger {
	return logging.New(os.Stderr, cfg.LogLevel)
}

func newClient(cfg *config.Config, logger gokitlog.Logger) *okapi.Client {
	return okapi.NewClient(
		cfg.OkapiURL,
		cfg.Tenant,
		okapi.WithTimeout(cfg.Timeout()),
		okapi.WithRateLimit(cfg.RateLimit),
		okapi.WithLogger(logger),
	)
}

// newRecorder builds the audit recorder. The returned close function must be
// called once the run is over.
func newRecorder(ctx context.Context) (*audit.Recorder, func(), error) {
	store, err := audit.NewStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to prepare audit database: %w", err)
	}
	var saver audit.Saver
	if store != nil {
		saver = store
	}
	return audit.NewRecorder(audit.NewLogger(os.Stderr), saver), func() { _ = store.Close() }, nil
}

func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(Execute())
}
