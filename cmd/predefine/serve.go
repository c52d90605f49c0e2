package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/predefine/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the predefine HTTP server.

The server will:
  - Load configuration from predefine.yaml (or --config), .env and the environment
  - Build the schema from locales, namespaces and relations
  - Open the database and rebuild its indexes
  - Serve /v<major API_VERSION>/predefines

Environment variables:
  DEFAULT_LOCALE, LOCALES           - localized fields (default: en)
  PREDEFINE_NAMESPACES              - comma separated namespaces
  PREDEFINE_DEFAULT_NAMESPACE       - namespace of documents without one (default: Setting)
  PREDEFINE_RELATIONS               - JSON object of relation declarations
  PREDEFINE_DATABASE_DRIVER         - sqlite or memory
  PREDEFINE_DATABASE_DSN            - database path (default: predefine.db)
  PREDEFINE_SERVER_PORT             - server port (default: 5000)
  PREDEFINE_EVENTS_NATS_URL         - publish change events to NATS
  API_VERSION                       - semantic version of the API (default: 1.0.0)

Examples:
  predefine serve
  PREDEFINE_NAMESPACES=Currency,Unit LOCALES=en,sw predefine serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := bootstrap.New(cfg, bootstrap.Options{})
	if err != nil {
		return err
	}

	// Run (blocks until shutdown)
	return app.Run()
}
