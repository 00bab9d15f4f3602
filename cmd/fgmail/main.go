package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/federalgaz/campaignmail/internal/app"
	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/storage"
)

var (
	cfgFile   string
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fgmail",
	Short: "fgmail - Federal Gaz campaign mail",
	Long: `fgmail renders Federal Gaz campaign emails from built-in templates
and delivers them through SMTP, Postmark, Resend or Amazon SES.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	RunE:  runConfigValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fgmail version %s\n", app.Version)
		if commit != "unknown" {
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file path (default: environment only, "+config.EnvPrefix+"*)")

	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(serveCmd, configCmd, versionCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStorage opens the configured database for offline commands
func openStorage() (*storage.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return db, nil
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
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration is valid\n")
	fmt.Fprintf(out, "  Hostname: %s\n", cfg.Server.Hostname)
	fmt.Fprintf(out, "  API:      %s\n", cfg.API.ListenAddr)
	fmt.Fprintf(out, "  Storage:  %s\n", cfg.Storage.Path)
	fmt.Fprintf(out, "  Provider: %s\n", cfg.Mail.Provider)
	fmt.Fprintf(out, "  Mode:     %s\n", cfg.Mail.Mode)
	fmt.Fprintf(out, "  From:     %s\n", cfg.Mail.From())
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "  Metrics:  %s%s\n", cfg.Metrics.ListenAddr, cfg.Metrics.Path)
	}

	return nil
}
