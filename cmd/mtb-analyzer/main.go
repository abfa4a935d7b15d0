// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the mtb-analyzer CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/logging"
	"github.com/pdiddy/mtb-analyzer/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets secrets.Secrets

	// rootLog is the process logger, built once configuration is read.
	rootLog = zap.NewNop()
)

// rootCmd is the base command for the mtb-analyzer CLI.
var rootCmd = &cobra.Command{
	Use:   "mtb-analyzer",
	Short: "Track and rate the JKU University Bulletin",
	Long: `mtb-analyzer discovers editions of the JKU University Bulletin
(Mitteilungsblatt), scrapes their items, and rates each item against a role
description with Claude.

Editions move through three stages: discovered, scraped, analyzed. The
scan, scrape, and analyze subcommands advance them one stage at a time; sync
runs all three from the last analyzed edition onward. serve exposes the same
operations over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log, err := logging.New(loadLogConfig(viper.GetViper()))
		if err != nil {
			return err
		}
		rootLog = log

		s, err := secrets.Load(".secrets/", log)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			log.Debug("loaded secrets", zap.Strings("keys", s.Keys()))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./mtb-analyzer.yaml or ~/.config/mtb-analyzer/mtb-analyzer.yaml)")
	rootCmd.PersistentFlags().String("database", "", "SQLite database path (default data/mtb.db)")
	_ = viper.BindPFlag("storage.database", rootCmd.PersistentFlags().Lookup("database"))
}

func initConfig() {
	// A missing .env is fine; variables already set win.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mtb-analyzer")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "mtb-analyzer"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("MTB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// Flat aliases for the common variables.
	_ = viper.BindEnv("analysis.api_key", "MTB_ANALYSIS_API_KEY", "MTB_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = rootLog.Sync()
	if err != nil {
		os.Exit(1)
	}
}
