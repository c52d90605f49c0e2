package openapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"

	"github.com/artpar/predefine/config"
	"github.com/artpar/predefine/core/schema"
)

func testDescriptor(t *testing.T) *schema.Descriptor {
	t.Helper()
	desc, err := schema.NewBuilder(&config.Config{
		Locale:    config.LocaleConfig{Default: "en", Supported: []string{"en", "sw"}},
		Predefine: config.PredefineConfig{Namespaces: []string{"Currency", "Unit"}},
	}).Build()
	require.NoError(t, err)
	return desc
}

func TestGenerate_Paths(t *testing.T) {
	desc := testDescriptor(t)
	spec := NewGenerator(desc).Generate()

	assert.Equal(t, "3.0.3", spec.OpenAPI)
	assert.Equal(t, "Predefine API", spec.Info.Title)

	for _, path := range []string{
		"/predefines",
		"/predefines/{id}",
		"/predefines/schema/",
		"/predefines/{bucket}",
		"/predefines/{bucket}/{id}",
		"/predefines/{bucket}/schema/",
	} {
		assert.Contains(t, spec.Paths, path)
	}

	list := spec.Paths["/predefines"].Get
	require.NotNil(t, list)
	assert.Equal(t, "listPredefine", list.OperationID)
	assert.Contains(t, list.Responses, "200")

	item := spec.Paths["/predefines/{bucket}/{id}"]
	require.NotNil(t, item.Patch)
	require.NotNil(t, item.Put)
	require.NotNil(t, item.Delete)
	assert.Equal(t, "bucket", item.Get.Parameters[0].Name)
	assert.Equal(t, desc.Buckets(), item.Get.Parameters[0].Schema.Enum)
	assert.Contains(t, item.Patch.Responses, "409")
}

func TestGenerate_SortParameter(t *testing.T) {
	spec := NewGenerator(testDescriptor(t)).Generate()

	var sortParam *Parameter
	for i, p := range spec.Paths["/predefines"].Get.Parameters {
		if p.Name == "sort" {
			sortParam = &spec.Paths["/predefines"].Get.Parameters[i]
		}
	}
	require.NotNil(t, sortParam)
	assert.Contains(t, sortParam.Schema.Enum, "weight")
	assert.Contains(t, sortParam.Schema.Enum, "-updatedAt")
}

func TestGenerate_DocumentSchema(t *testing.T) {
	spec := NewGenerator(testDescriptor(t)).Generate()

	doc, ok := spec.Components.Schemas["Predefine"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, doc, "$schema")
	assert.Contains(t, spec.Components.Schemas, "PredefinePage")
	assert.Contains(t, spec.Components.Schemas, "Error")
}

func TestSpec_ToJSON(t *testing.T) {
	g := NewGenerator(testDescriptor(t))
	g.SetInfo(Info{Title: "Lookups", Version: "2.1.0"})
	g.AddServer("/v2", "current")

	data, err := g.Generate().ToJSON()
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Lookups", out["info"].(map[string]any)["title"])
	assert.Equal(t, "/v2", out["servers"].([]any)[0].(map[string]any)["url"])
}

func TestRegister(t *testing.T) {
	desc := testDescriptor(t)
	spec := NewGenerator(desc).Generate()
	name := InstanceName(desc.Fingerprint())

	require.NoError(t, Register(name, spec))
	// registering again is a no-op instead of a swag panic
	require.NoError(t, Register(name, spec))

	doc, err := swag.ReadDoc(name)
	require.NoError(t, err)
	assert.Contains(t, doc, `"openapi":"3.0.3"`)
}
