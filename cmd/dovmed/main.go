// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the dovmed CLI: bulk download of
// the PMC Open Access collection, conversion to parquet shards, and
// concept-group scanning over the converted corpus.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dovmed/dovmed/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// closeLog releases the log file opened in PersistentPreRunE.
var closeLog = func() error { return nil }

// rootCmd is the base command for the dovmed CLI.
var rootCmd = &cobra.Command{
	Use:   "dovmed",
	Short: "Mine the PMC Open Access literature with concept-group queries",
	Long: `dovmed downloads the PubMed Central Open Access bulk collection,
converts the JATS XML archives into flat parquet document shards, and scans
those shards with concept-group pattern queries.

Each stage is a subcommand: download fetches the OA archives, convert turns
them into parquet shards, scan runs a query against the shards, and review
searches the results of a previous scan.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; it carries things like the NCBI contact
		// address without putting them on the command line.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading .env: %w", err)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		logFile, _ := cmd.Flags().GetString("log-file")
		_, closer, err := logging.Setup(verbose, logFile)
		if err != nil {
			return err
		}
		closeLog = closer
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./dovmed.yaml or ~/.config/dovmed/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "mirror the log to this file")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("dovmed")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "dovmed"))
		}
	}

	viper.SetEnvPrefix("DOVMED")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	err := rootCmd.Execute()
	closeLog()
	if err != nil {
		os.Exit(1)
	}
}
