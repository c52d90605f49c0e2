package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/predefine/bootstrap"
	"github.com/artpar/predefine/core/formatter"
	"github.com/artpar/predefine/core/openapi"
	"github.com/artpar/predefine/core/schema"
)

var (
	schemaFormat string
	schemaKind   string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema derived from configuration",
	Long: `Print the schema descriptor built from the current configuration.

Kinds:
  summary      model, locales, buckets, relations and unique index
  jsonschema   JSON schema of a document
  openapi      OpenAPI document of the HTTP surface

Examples:
  predefine schema
  predefine schema --kind jsonschema --format yaml
  predefine schema --format table`,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().StringVarP(&schemaFormat, "format", "f", "json", "output format: "+strings.Join(formatter.List(), ", "))
	schemaCmd.Flags().StringVarP(&schemaKind, "kind", "k", "summary", "what to print: summary, jsonschema or openapi")
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	desc, err := bootstrap.BuildSchema(cfg)
	if err != nil {
		return err
	}

	var v any
	switch schemaKind {
	case "summary":
		v = desc.Summary()
	case "jsonschema":
		v = desc.JSONSchema()
	case "openapi":
		prefix, err := bootstrap.MountPrefix(cfg.API.Version)
		if err != nil {
			return err
		}
		gen := openapi.NewGenerator(desc)
		gen.SetInfo(openapi.Info{Title: desc.ModelName() + " API", Version: cfg.API.Version})
		gen.AddServer(prefix, "current API version")
		v = gen.Generate()
	default:
		return fmt.Errorf("unknown kind %q", schemaKind)
	}

	if summary, ok := v.(schema.Summary); ok && schemaFormat == "table" {
		v = relationTable(summary.Relations)
	}
	return formatter.Write(cmd.OutOrStdout(), schemaFormat, v)
}

// relationTable prints the relations of a summary, one row per relation.
type relationTable schema.Relations

func (t relationTable) Header() []string {
	return []string{"name", "ref", "index", "aggregatable", "taggable", "autopopulate", "explicit"}
}

func (t relationTable) Rows() [][]string {
	rels := schema.Relations(t)
	rows := make([][]string, 0, len(rels))
	for _, name := range rels.Names() {
		r := rels[name]
		rows = append(rows, []string{
			r.Name,
			r.Ref,
			formatter.Value(r.Indexed),
			formatter.Value(r.Aggregatable),
			formatter.Value(r.Taggable),
			formatter.Value(r.AutopopulateDepth),
			formatter.Value(r.Explicit),
		})
	}
	return rows
}
