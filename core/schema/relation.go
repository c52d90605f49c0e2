package schema

import "sort"

// AutopopulateDepth is the depth every relation is autopopulated to.
const AutopopulateDepth = 1

// PopulateSelect lists the fields loaded for an autopopulated predefine.
var PopulateSelect = []string{"name", "code", "abbreviation", "symbol", "weight", "color"}

// forcedKeys are relation properties the assembler always sets itself.
var forcedKeys = map[string]bool{
	"type":         true,
	"ref":          true,
	"index":        true,
	"aggregatable": true,
	"taggable":     true,
	"autopopulate": true,
}

// Relation describes a reference field of a predefine document.
type Relation struct {
	Name              string         `json:"name" yaml:"name"`
	Ref               string         `json:"ref" yaml:"ref"`
	Indexed           bool           `json:"index" yaml:"index"`
	Aggregatable      bool           `json:"aggregatable" yaml:"aggregatable"`
	Taggable          bool           `json:"taggable" yaml:"taggable"`
	AutopopulateDepth int            `json:"autopopulateDepth" yaml:"autopopulate_depth"`
	Explicit          bool           `json:"explicit" yaml:"explicit"`
	Extra             map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Targets reports whether the relation points at the given model.
func (r Relation) Targets(model string) bool {
	return r.Ref == model
}

// clone returns a deep enough copy for the descriptor's accessors.
func (r Relation) clone() Relation {
	if r.Extra != nil {
		extra := make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			extra[k] = v
		}
		r.Extra = extra
	}
	return r
}

// Relations is a set of relations keyed by name.
type Relations map[string]Relation

// Names returns the relation names in sorted order.
func (rs Relations) Names() []string {
	names := make([]string, 0, len(rs))
	for name := range rs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (rs Relations) clone() Relations {
	out := make(Relations, len(rs))
	for name, r := range rs {
		out[name] = r.clone()
	}
	return out
}

// IndexOrder is the sort direction of an index field.
type IndexOrder int

const (
	Ascending  IndexOrder = 1
	Descending IndexOrder = -1
)

// IdentityFields identify a logical document. Stores reject two live
// documents sharing them, whatever their names.
var IdentityFields = []string{"namespace", "bucket", "code"}

// IndexField is one field of a compound index.
type IndexField struct {
	Field string     `json:"field" yaml:"field"`
	Order IndexOrder `json:"order" yaml:"order"`
}
