// Package predefine provides the predefine document type and pure functions
// to normalize, validate and update it against a schema descriptor.
package predefine

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/artpar/predefine/core/locale"
)

// Document is a predefined reference-data value such as a currency or a unit.
type Document struct {
	ID           string         `json:"_id,omitempty"`
	Namespace    string         `json:"namespace,omitempty"`
	Bucket       string         `json:"bucket,omitempty"`
	Code         string         `json:"code,omitempty"`
	Name         locale.Value   `json:"name,omitempty"`
	Abbreviation locale.Value   `json:"abbreviation,omitempty"`
	Description  locale.Value   `json:"description,omitempty"`
	Symbol       string         `json:"symbol,omitempty"`
	Weight       float64        `json:"weight"`
	Color        string         `json:"color,omitempty"`
	Icon         string         `json:"icon,omitempty"`
	Geometry     map[string]any `json:"geometry,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
	Relations    map[string]Ref `json:"relations,omitempty"`
	CreatedAt    time.Time      `json:"createdAt,omitzero"`
	UpdatedAt    time.Time      `json:"updatedAt,omitzero"`
	DeletedAt    *time.Time     `json:"deletedAt,omitempty"`
}

// IsDeleted reports whether the document was soft deleted.
func (d Document) IsDeleted() bool {
	return d.DeletedAt != nil
}

// Only returns a copy of d keeping the given top-level fields.
// The id is always kept. An empty field list keeps everything.
func (d Document) Only(fields []string) Document {
	if len(fields) == 0 {
		return d
	}
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}

	out := Document{ID: d.ID}
	if keep["namespace"] {
		out.Namespace = d.Namespace
	}
	if keep["bucket"] {
		out.Bucket = d.Bucket
	}
	if keep["code"] {
		out.Code = d.Code
	}
	if keep["name"] {
		out.Name = d.Name
	}
	if keep["abbreviation"] {
		out.Abbreviation = d.Abbreviation
	}
	if keep["description"] {
		out.Description = d.Description
	}
	if keep["symbol"] {
		out.Symbol = d.Symbol
	}
	if keep["weight"] {
		out.Weight = d.Weight
	}
	if keep["color"] {
		out.Color = d.Color
	}
	if keep["icon"] {
		out.Icon = d.Icon
	}
	if keep["geometry"] {
		out.Geometry = d.Geometry
	}
	if keep["properties"] {
		out.Properties = d.Properties
	}
	if keep["relations"] {
		out.Relations = d.Relations
	}
	if keep["createdAt"] {
		out.CreatedAt = d.CreatedAt
	}
	if keep["updatedAt"] {
		out.UpdatedAt = d.UpdatedAt
	}
	if keep["deletedAt"] {
		out.DeletedAt = d.DeletedAt
	}
	return out
}

// Ref is a relation value. It holds the referenced id and, once populated,
// the referenced document.
type Ref struct {
	ID  string
	Doc *Document
}

// MarshalJSON writes the populated document when present, the bare id otherwise.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Doc != nil {
		return json.Marshal(r.Doc)
	}
	return json.Marshal(r.ID)
}

// UnmarshalJSON accepts an id string, an object with an "_id" or null.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*r = Ref{ID: obj.ID}
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*r = Ref{ID: id}
	return nil
}

// Changes is a partial update keyed by document field.
// Keys may address a single locale or relation with a dotted path such as
// "name.sw" or "relations.currency".
type Changes map[string]any

// Touches reports whether c changes field, as a whole or through a dotted path.
func (c Changes) Touches(field string) bool {
	for key := range c {
		if key == field || strings.HasPrefix(key, field+".") {
			return true
		}
	}
	return false
}
