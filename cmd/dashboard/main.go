package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/app"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/config"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/crm"
)

var (
	cfgFile    string
	listenAddr string
	version    = "dev"
	commit     = "unknown"
	buildTime  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Marketing pipeline dashboard",
	Long:  `Web dashboard for creating marketing campaigns and browsing their artifacts.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long:  `Start the dashboard HTTP server. Without a config file the defaults run a fully working mock-mode pipeline.`,
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
		fmt.Printf("dashboard version %s\n", version)
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
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address override (host:port)")

	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(serveCmd, configCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
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

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Listen:   %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  Data:     %s\n", cfg.Data.Dir)
	fmt.Printf("  Model:    %s\n", cfg.LLM.Model)
	fmt.Printf("  CRM mode: %s\n", crm.ResolveMode(cfg.CRM.APIKey))
	fmt.Printf("  Personas: %s\n", strings.Join(cfg.PersonaKeys(), ", "))

	return nil
}
