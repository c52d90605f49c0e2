package formatter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type people [][]string

func (p people) Header() []string { return []string{"name", "role"} }
func (p people) Rows() [][]string { return p }

func TestDefaultRegistry(t *testing.T) {
	assert.Equal(t, []string{"json", "table", "yaml"}, List())

	for _, name := range List() {
		f, ok := Get(name)
		require.True(t, ok, name)
		assert.Equal(t, name, f.Name())
		assert.NotEmpty(t, f.Description())
	}

	_, ok := Get("xml")
	assert.False(t, ok)
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewJSONFormatter()))
	assert.Error(t, r.Register(NewJSONFormatter()))
}

func TestRegistry_WriteUnknown(t *testing.T) {
	var buf bytes.Buffer
	err := NewRegistry().Write(&buf, "csv", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "csv"`)
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", map[string]any{"code": "TZS", "weight": 1}))
	assert.JSONEq(t, `{"code":"TZS","weight":1}`, buf.String())
	assert.Contains(t, buf.String(), "\n  \"code\"")
}

func TestYAMLFormatter(t *testing.T) {
	type doc struct {
		ModelName string   `json:"modelName"`
		Locales   []string `json:"locales"`
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "yaml", doc{ModelName: "Predefine", Locales: []string{"en", "sw"}}))
	assert.Equal(t, "locales:\n  - en\n  - sw\nmodelName: Predefine\n", buf.String())
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	rows := people{{"ada", "admin"}, {"grace", "-"}}
	require.NoError(t, Write(&buf, "table", rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "NAME   ROLE", lines[0])
	assert.Equal(t, "ada    admin", lines[1])
	assert.Equal(t, "grace  -", lines[2])
}

func TestTableFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "table", people{}))
	assert.Equal(t, "No records found.\n", buf.String())
}

func TestTableFormatter_NotTabular(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, "table", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestTableFormatter_Truncate(t *testing.T) {
	f := &TableFormatter{MaxWidth: 6}
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, people{{"abcdefghij", "x"}}))
	assert.Contains(t, buf.String(), "abc...")
}

func TestValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "-"},
		{"", "-"},
		{"kg", "kg"},
		{true, "yes"},
		{false, "no"},
		{3, "3"},
		{2.0, "2"},
		{2.5, "2.50"},
		{[]string{"a", "b"}, "a,b"},
		{[]string{}, "-"},
		{map[string]int{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Value(tt.in))
	}
}
