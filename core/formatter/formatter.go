// Package formatter provides a pluggable output formatting system for the CLI.
// Formatters convert structured data to an output format (json, yaml, table).
package formatter

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Formatter converts structured data to a specific output format.
type Formatter interface {
	// Name returns the formatter name (e.g., "table", "json", "yaml").
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Format writes v to w.
	Format(w io.Writer, v any) error
}

// Tabular is implemented by values the table formatter can print.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// Registry manages registered formatters.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
	}
}

// Register adds a formatter to the registry.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Name()]; exists {
		return fmt.Errorf("formatter %q already registered", f.Name())
	}

	r.formatters[f.Name()] = f
	return nil
}

// Get returns a formatter by name.
func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[name]
	return f, ok
}

// List returns all registered formatter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Write formats v with the named formatter.
func (r *Registry) Write(w io.Writer, name string, v any) error {
	f, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("unknown format %q (available: %v)", name, r.List())
	}
	return f.Format(w, v)
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter to the default registry.
func Register(f Formatter) error {
	return DefaultRegistry.Register(f)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, bool) {
	return DefaultRegistry.Get(name)
}

// List returns all formatter names from the default registry.
func List() []string {
	return DefaultRegistry.List()
}

// Write formats v with the named formatter of the default registry.
func Write(w io.Writer, name string, v any) error {
	return DefaultRegistry.Write(w, name, v)
}
