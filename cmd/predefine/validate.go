package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/predefine/adapters/sqlite"
	"github.com/artpar/predefine/bootstrap"
	"github.com/artpar/predefine/config"
)

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

var validateCheckDatabase bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the predefine configuration.

Checks:
  - Config file and environment parse
  - Locales are valid BCP 47 tags
  - Relation names are valid identifiers
  - API_VERSION is a semantic version
  - Database schema can be applied (--check-database)

Examples:
  predefine validate
  predefine validate --check-database`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "open the database and apply the schema")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(out, "  %s Configuration loads\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Configuration loads\n", checkMark)

	desc, err := bootstrap.BuildSchema(cfg)
	if err != nil {
		fmt.Fprintf(out, "  %s Schema builds\n", crossMark)
		return err
	}
	fmt.Fprintf(out, "  %s Schema builds (fingerprint %s)\n", checkMark, desc.Fingerprint())

	prefix, err := bootstrap.MountPrefix(cfg.API.Version)
	if err != nil {
		fmt.Fprintf(out, "  %s API version\n", crossMark)
		return err
	}
	fmt.Fprintf(out, "  %s API version %s mounted at %s\n", checkMark, cfg.API.Version, prefix)

	if validateCheckDatabase && cfg.Database.Driver == config.DriverSQLite {
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			fmt.Fprintf(out, "  %s Database opens\n", crossMark)
			return err
		}
		defer db.Close()
		if _, err := sqlite.NewPredefineStore(context.Background(), db, desc); err != nil {
			fmt.Fprintf(out, "  %s Database schema applies\n", crossMark)
			return err
		}
		fmt.Fprintf(out, "  %s Database schema applies\n", checkMark)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Locales:    %s (default %s)\n", strings.Join(desc.Locales(), ", "), desc.DefaultLocale())
	fmt.Fprintf(out, "Buckets:    %s\n", strings.Join(desc.Buckets(), ", "))
	fmt.Fprintf(out, "Relations:  %s\n", strings.Join(desc.RelationNames(), ", "))
	return nil
}
