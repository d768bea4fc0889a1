package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/postcard/internal/app"
	"github.com/foxzi/postcard/internal/config"
	"github.com/foxzi/postcard/internal/storage"
)

var (
	cfgFile   string
	envFile   string
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "postcard",
	Short: "Postcard - transactional email composer",
	Long: `Postcard renders branded emails from a few fields, sends campaigns to
subscribers and answers Stripe events with automated messages.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnv(envFile)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("postcard version %s\n", version)
		if commit != "unknown" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with secrets, ignored if missing")

	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(serveCmd, configCmd, versionCmd)
}

// loadEnv exports the variables of a dotenv file. Variables already set in
// the environment win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("config file is required (use -c flag)")
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStores opens the database named by the config for a CLI command
func openStores() (*app.Stores, *bolt.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	stores, err := app.OpenStores(db, cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return stores, db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return application.Run(context.Background())
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use -c flag)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Company:   %s <%s>\n", cfg.Company.Name, cfg.Company.From)
	fmt.Printf("  API:       %s\n", cfg.API.ListenAddr)
	fmt.Printf("  Gateway:   %s\n", cfg.Gateway.Driver)
	fmt.Printf("  Assets:    %s\n", cfg.Assets.Driver)
	fmt.Printf("  Storage:   %s\n", cfg.Storage.Path)
	fmt.Printf("  Stripe:    %t\n", cfg.Stripe.Enabled)
	fmt.Printf("  Scheduler: %t\n", cfg.Scheduler.Enabled)
	fmt.Printf("  RateLimit: %t\n", cfg.RateLimit.Enabled)
	switch {
	case cfg.API.TLS.ACME.Enabled:
		fmt.Printf("  TLS:       acme %v\n", cfg.API.TLS.ACME.Domains)
	case cfg.API.TLS.CertFile != "":
		fmt.Printf("  TLS:       %s\n", cfg.API.TLS.CertFile)
	}
	if cfg.Metrics.Enabled {
		fmt.Printf("  Metrics:   %s%s\n", cfg.Metrics.ListenAddr, cfg.Metrics.Path)
	}

	return nil
}
