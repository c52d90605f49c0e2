// Package openapi generates OpenAPI 3.0 specifications from the schema descriptor.
// Paths, parameters and the document schema are derived from the descriptor,
// so the published API documentation always matches the running model.
package openapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/predefine/core/schema"
	"github.com/artpar/predefine/domain/predefine"
)

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
	Tags       []Tag               `json:"tags,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server represents a server URL.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string            `json:"tags,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	OperationID string              `json:"operationId,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Parameter represents an API parameter.
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"` // path, query, header
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Description string               `json:"description,omitempty"`
	Required    bool                 `json:"required,omitempty"`
	Content     map[string]MediaType `json:"content"`
}

// Response represents an API response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema represents the subset of JSON Schema used by parameters and envelopes.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Format      string             `json:"format,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	Default     any                `json:"default,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
}

// Components contains reusable schemas.
// The document schema comes from schema.Descriptor.JSONSchema, so schemas are
// kept as raw JSON values.
type Components struct {
	Schemas map[string]any `json:"schemas,omitempty"`
}

// Tag provides metadata for a group of operations.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Generator generates OpenAPI specs from a schema descriptor.
type Generator struct {
	desc    *schema.Descriptor
	info    Info
	servers []Server
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(desc *schema.Descriptor) *Generator {
	return &Generator{
		desc: desc,
		info: Info{
			Title:       desc.ModelName() + " API",
			Version:     "1.0.0",
			Description: fmt.Sprintf("Reference data stored as %s documents, grouped by namespace.", desc.ModelName()),
		},
	}
}

// SetInfo sets the API info.
func (g *Generator) SetInfo(info Info) {
	g.info = info
}

// AddServer adds a server URL.
func (g *Generator) AddServer(url, description string) {
	g.servers = append(g.servers, Server{
		URL:         url,
		Description: description,
	})
}

// Generate creates the OpenAPI specification.
func (g *Generator) Generate() *Spec {
	model := g.desc.ModelName()
	base := "/" + g.desc.Collection()

	doc := g.desc.JSONSchema()
	delete(doc, "$schema")

	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    g.info,
		Servers: g.servers,
		Paths:   make(map[string]PathItem),
		Components: Components{
			Schemas: map[string]any{
				model:          doc,
				model + "Page": g.pageSchema(),
				"Error":        errorSchema(),
			},
		},
		Tags: []Tag{{Name: model, Description: "Buckets: " + strings.Join(g.desc.Buckets(), ", ")}},
	}

	g.addCollectionPaths(spec, base, nil)
	g.addDocumentPaths(spec, base+"/{id}", nil)
	g.addSchemaPath(spec, base+"/schema/", nil)

	bucket := Parameter{
		Name:        "bucket",
		In:          "path",
		Required:    true,
		Description: "Bucket of the namespace",
		Schema:      &Schema{Type: "string", Enum: g.desc.Buckets()},
	}
	g.addCollectionPaths(spec, base+"/{bucket}", &bucket)
	g.addDocumentPaths(spec, base+"/{bucket}/{id}", &bucket)
	g.addSchemaPath(spec, base+"/{bucket}/schema/", &bucket)

	return spec
}

func (g *Generator) pageSchema() *Schema {
	integer := &Schema{Type: "integer"}
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"data":         {Type: "array", Items: g.ref()},
			"total":        integer,
			"size":         integer,
			"limit":        integer,
			"skip":         integer,
			"page":         integer,
			"pages":        integer,
			"lastModified": {Type: "string", Format: "date-time", Nullable: true},
		},
	}
}

func errorSchema() *Schema {
	str := &Schema{Type: "string"}
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"errors": {
				Type: "array",
				Items: &Schema{
					Type: "object",
					Properties: map[string]*Schema{
						"status": str,
						"code":   str,
						"title":  str,
						"detail": str,
						"source": {Type: "object", Properties: map[string]*Schema{"pointer": str, "parameter": str}},
					},
				},
			},
		},
	}
}

func (g *Generator) ref() *Schema {
	return &Schema{Ref: "#/components/schemas/" + g.desc.ModelName()}
}

func (g *Generator) jsonContent(s *Schema) map[string]MediaType {
	return map[string]MediaType{"application/json": {Schema: s}}
}

func (g *Generator) errorResponse(description string) Response {
	return Response{
		Description: description,
		Content: map[string]MediaType{
			"application/vnd.api+json": {Schema: &Schema{Ref: "#/components/schemas/Error"}},
		},
	}
}

func (g *Generator) queryParameters() []Parameter {
	minOne := float64(1)
	maxLimit := float64(predefine.MaxLimit)
	fields := make([]string, 0, len(predefine.SortFields))
	for f := range predefine.SortFields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	sorts := make([]string, 0, 2*len(fields))
	for _, f := range fields {
		sorts = append(sorts, f, "-"+f)
	}
	return []Parameter{
		{Name: "limit", In: "query", Description: "Maximum number of documents", Schema: &Schema{Type: "integer", Default: predefine.DefaultLimit, Minimum: &minOne, Maximum: &maxLimit}},
		{Name: "skip", In: "query", Description: "Number of documents to skip; wins over page", Schema: &Schema{Type: "integer", Default: 0}},
		{Name: "page", In: "query", Description: "1-based page number", Schema: &Schema{Type: "integer", Minimum: &minOne}},
		{Name: "sort", In: "query", Description: "Sort field, prefixed with - for descending", Schema: &Schema{Type: "string", Enum: sorts}},
		{Name: "q", In: "query", Description: "Case-insensitive match on code or default-locale name", Schema: &Schema{Type: "string"}},
		{Name: "select", In: "query", Description: "Comma separated top-level fields to return", Schema: &Schema{Type: "string"}},
		{Name: "populate", In: "query", Description: "Load related " + g.desc.ModelName() + " documents one level deep", Schema: &Schema{Type: "boolean"}},
		{Name: "filter[namespace]", In: "query", Schema: &Schema{Type: "string", Enum: g.desc.Namespaces()}},
		{Name: "filter[code]", In: "query", Schema: &Schema{Type: "string"}},
	}
}

func withBucket(bucket *Parameter, params ...Parameter) []Parameter {
	if bucket == nil {
		return params
	}
	return append([]Parameter{*bucket}, params...)
}

func operationID(verb, model string, bucket *Parameter) string {
	if bucket != nil {
		return verb + model + "InBucket"
	}
	return verb + model
}

// addCollectionPaths adds list and create operations.
func (g *Generator) addCollectionPaths(spec *Spec, path string, bucket *Parameter) {
	model := g.desc.ModelName()
	item := spec.Paths[path]

	params := g.queryParameters()
	if bucket == nil {
		params = append(params, Parameter{Name: "filter[bucket]", In: "query", Schema: &Schema{Type: "string", Enum: g.desc.Buckets()}})
	}

	item.Get = &Operation{
		Tags:        []string{model},
		Summary:     "List " + g.desc.Collection(),
		Description: "Deleted documents are never listed. Default sort: weight, code.",
		OperationID: operationID("list", model, bucket),
		Parameters:  withBucket(bucket, params...),
		Responses: map[string]Response{
			"200": {Description: "One page of documents", Content: g.jsonContent(&Schema{Ref: "#/components/schemas/" + model + "Page"})},
			"400": g.errorResponse("Invalid query parameter"),
			"404": g.errorResponse("Unknown bucket"),
		},
	}

	item.Post = &Operation{
		Tags:        []string{model},
		Summary:     "Create " + model,
		Description: "Namespace defaults to the bucket's namespace, else to " + g.desc.DefaultNamespace() + ".",
		OperationID: operationID("create", model, bucket),
		Parameters:  withBucket(bucket),
		RequestBody: &RequestBody{Required: true, Content: g.jsonContent(g.ref())},
		Responses: map[string]Response{
			"201": {Description: "Document created", Content: g.jsonContent(g.ref())},
			"400": g.errorResponse("Malformed body"),
			"409": g.errorResponse("Duplicate unique key"),
			"422": g.errorResponse("Validation failed"),
		},
	}

	spec.Paths[path] = item
}

// addDocumentPaths adds get, update and delete operations.
func (g *Generator) addDocumentPaths(spec *Spec, path string, bucket *Parameter) {
	model := g.desc.ModelName()
	item := spec.Paths[path]
	id := Parameter{Name: "id", In: "path", Required: true, Description: "Document ID", Schema: &Schema{Type: "string"}}

	item.Get = &Operation{
		Tags:        []string{model},
		Summary:     "Get " + model + " by ID",
		OperationID: operationID("get", model, bucket),
		Parameters: withBucket(bucket, id,
			Parameter{Name: "select", In: "query", Schema: &Schema{Type: "string"}},
			Parameter{Name: "populate", In: "query", Schema: &Schema{Type: "boolean"}},
		),
		Responses: map[string]Response{
			"200": {Description: "Document", Content: g.jsonContent(g.ref())},
			"404": g.errorResponse("Document not found"),
		},
	}

	update := func(verb, summary string) *Operation {
		return &Operation{
			Tags:        []string{model},
			Summary:     summary,
			Description: "Changes are merged; localized fields, properties and relations key by key. Dotted keys such as name.en address a single entry.",
			OperationID: operationID(verb, model, bucket),
			Parameters:  withBucket(bucket, id),
			RequestBody: &RequestBody{Required: true, Content: g.jsonContent(&Schema{Type: "object"})},
			Responses: map[string]Response{
				"200": {Description: "Updated document", Content: g.jsonContent(g.ref())},
				"400": g.errorResponse("Malformed body"),
				"404": g.errorResponse("Document not found"),
				"409": g.errorResponse("Duplicate unique key"),
				"422": g.errorResponse("Validation failed"),
			},
		}
	}
	item.Patch = update("patch", "Update "+model)
	item.Put = update("put", "Replace "+model+" fields")

	item.Delete = &Operation{
		Tags:        []string{model},
		Summary:     "Delete " + model,
		Description: "Marks the document deleted unless hard=true.",
		OperationID: operationID("delete", model, bucket),
		Parameters:  withBucket(bucket, id, Parameter{Name: "hard", In: "query", Schema: &Schema{Type: "boolean"}}),
		Responses: map[string]Response{
			"200": {Description: "Deleted document", Content: g.jsonContent(g.ref())},
			"404": g.errorResponse("Document not found"),
		},
	}

	spec.Paths[path] = item
}

// addSchemaPath adds the schema operation.
func (g *Generator) addSchemaPath(spec *Spec, path string, bucket *Parameter) {
	model := g.desc.ModelName()
	spec.Paths[path] = PathItem{
		Get: &Operation{
			Tags:        []string{model},
			Summary:     "Get the " + model + " JSON schema",
			OperationID: operationID("schema", model, bucket),
			Parameters:  withBucket(bucket),
			Responses: map[string]Response{
				"200": {Description: "JSON schema", Content: g.jsonContent(&Schema{Type: "object"})},
				"304": {Description: "Schema unchanged"},
			},
		},
	}
}

// ToJSON converts the spec to JSON.
func (spec *Spec) ToJSON() ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// ToJSONCompact converts the spec to compact JSON.
func (spec *Spec) ToJSONCompact() ([]byte, error) {
	return json.Marshal(spec)
}
