package openapi

import (
	"fmt"
	"sync"

	"github.com/swaggo/swag"
)

// document serves a generated spec through swag.
type document struct {
	data string
}

// ReadDoc implements swag.Swagger.
func (d document) ReadDoc() string {
	return d.data
}

var registerMu sync.Mutex

// InstanceName returns the swag instance name for a descriptor fingerprint.
func InstanceName(fingerprint string) string {
	return "predefine-" + fingerprint
}

// Register publishes spec to swag under name.
// swag panics on duplicate names, so a name that is already registered is
// left untouched; equal fingerprints produce equal documents.
func Register(name string, spec *Spec) error {
	registerMu.Lock()
	defer registerMu.Unlock()

	if swag.GetSwagger(name) != nil {
		return nil
	}
	data, err := spec.ToJSONCompact()
	if err != nil {
		return fmt.Errorf("encode openapi spec: %w", err)
	}
	swag.Register(name, document{data: string(data)})
	return nil
}
