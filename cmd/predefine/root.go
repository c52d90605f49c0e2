package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/predefine/config"
)

var (
	// Global flags
	cfgFile string
	envFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "predefine",
	Short: "Generic reference data service",
	Long: `predefine serves lookup values (currencies, units, priorities...) from a
single document model. Namespaces, locales and relations are configuration,
not code.

  predefine serve      # Start the HTTP server
  predefine schema     # Print the schema derived from configuration
  predefine validate   # Validate configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "predefine.yaml", "config file path (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment (optional)")
}

// loadConfig reads the .env file, then the config file when present, then
// the environment.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return config.LoadWithFallback(cfgFile)
}
