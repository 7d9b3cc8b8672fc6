package cmd

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kerbaras/comicdl/pkg/config"
	"github.com/kerbaras/comicdl/pkg/services"
	"github.com/kerbaras/comicdl/pkg/sources"
)

var (
	cfgFile string
	v       = config.New()
	cfg     *config.Config
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "comicdl",
	Short: "Download comic chapters for offline reading",
	Long:  "Download, track and clean up comic chapters stored on this device",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(v)
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/comicdl/comicdl.yaml)")
	flags.String("download-dir", "", "directory downloaded pages are stored in")
	flags.String("store-driver", "", "download store backend (duckdb, bolt, memory)")
	flags.String("store-path", "", "download store database file")
	flags.Int("workers", 0, "chapters downloaded in parallel")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	for flag, key := range flagKeys {
		v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"download-dir": "download_dir",
	"store-driver": "store.driver",
	"store-path":   "store.path",
	"workers":      "workers",
	"log-level":    "log_level",
}

func initConfig(v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c
	logger = config.NewLogger(os.Stderr, cfg.LogLevel)
	return nil
}

func openManager(ctx context.Context) (*services.Manager, error) {
	return services.OpenManager(ctx, cfg, logger)
}

func newCatalog() sources.Catalog {
	client := &http.Client{Timeout: cfg.FetchTimeout()}
	return sources.NewMangaDex(client, cfg.Source.BaseURL, cfg.Fetch.UserAgent)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
