package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/artpar/predefine/config"
	"github.com/artpar/predefine/core/convention"
	"github.com/artpar/predefine/core/locale"
)

// LocalizedBases are the document fields stored once per locale.
var LocalizedBases = []string{"abbreviation", "description", "name"}

var relationNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Source provides the resolved configuration the builder reads.
// *config.Config implements it.
type Source interface {
	DefaultLocale() string
	Locales() []string
	DefaultNamespace() string
	Namespaces() []string
	RawRelations() map[string]map[string]any
	ModelName() string
	CollectionName() string
}

// Builder derives schema parts from configuration.
type Builder struct {
	src     Source
	deriver *locale.Deriver
}

// NewBuilder creates a builder over the given configuration.
func NewBuilder(src Source) *Builder {
	return &Builder{
		src:     src,
		deriver: locale.NewDeriver(src.DefaultLocale(), src.Locales()),
	}
}

// Deriver returns the locale deriver for the configured locale set.
func (b *Builder) Deriver() *locale.Deriver {
	return b.deriver
}

// LocalizedFields returns the per-locale field names of every localized base.
func (b *Builder) LocalizedFields() map[string][]string {
	out := make(map[string][]string, len(LocalizedBases))
	for _, base := range LocalizedBases {
		out[base] = b.deriver.FieldNames(base)
	}
	return out
}

// ImplicitRelations returns one relation per distinct namespace relation key.
// Every implicit relation points at the predefine model.
func (b *Builder) ImplicitRelations() Relations {
	model := b.src.ModelName()
	out := make(Relations)
	for _, ns := range b.src.Namespaces() {
		key := convention.RelationKey(ns)
		if key == "" {
			continue
		}
		if _, ok := out[key]; ok {
			continue
		}
		out[key] = forced(Relation{Name: key, Ref: model})
	}
	return out
}

// ExplicitRelations returns the configured relations.
// User-supplied properties are kept in Extra; ref defaults to the predefine
// model and the forced flags always win.
func (b *Builder) ExplicitRelations() Relations {
	model := b.src.ModelName()
	out := make(Relations)
	for name, props := range b.src.RawRelations() {
		if name == "" {
			continue
		}
		ref := model
		if v, ok := props["ref"].(string); ok && strings.TrimSpace(v) != "" {
			ref = strings.TrimSpace(v)
		}

		var extra map[string]any
		for k, v := range props {
			if forcedKeys[k] {
				continue
			}
			if extra == nil {
				extra = make(map[string]any)
			}
			extra[k] = v
		}

		r := forced(Relation{Name: name, Ref: ref, Extra: extra})
		r.Explicit = true
		out[name] = r
	}
	return out
}

// AssembleRelations merges implicit and explicit relations.
// Implicit relations are applied first, explicit ones last; on a name
// collision the explicit definition wins.
func (b *Builder) AssembleRelations() Relations {
	out := make(Relations)
	for name, r := range b.ImplicitRelations() {
		out[name] = r
	}
	for name, r := range b.ExplicitRelations() {
		out[name] = r
	}
	return out
}

// UniqueIndex returns the compound unique index of predefine documents:
// namespace, bucket, code and one name field per locale, all ascending.
func (b *Builder) UniqueIndex() []IndexField {
	names := b.deriver.FieldNames("name")
	index := make([]IndexField, 0, 3+len(names))
	for _, f := range IdentityFields {
		index = append(index, IndexField{Field: f, Order: Ascending})
	}
	for _, f := range names {
		index = append(index, IndexField{Field: f, Order: Ascending})
	}
	return index
}

// Build assembles the descriptor.
// It fails with a *config.ConfigurationError when a relation name cannot be
// used as a document key.
func (b *Builder) Build() (*Descriptor, error) {
	relations := b.AssembleRelations()
	for _, name := range relations.Names() {
		if !relationNamePattern.MatchString(name) {
			return nil, &config.ConfigurationError{
				Key: config.EnvRelations,
				Err: fmt.Errorf("invalid relation name %q", name),
			}
		}
	}

	namespaces := b.src.Namespaces()
	defaultNamespace := b.src.DefaultNamespace()
	if defaultNamespace == "" {
		return nil, &config.ConfigurationError{
			Key: config.EnvDefaultNamespace,
			Err: errors.New("default namespace is empty"),
		}
	}

	known := append([]string{defaultNamespace}, namespaces...)
	d := &Descriptor{
		modelName:        b.src.ModelName(),
		collection:       b.src.CollectionName(),
		deriver:          b.deriver,
		defaultNamespace: defaultNamespace,
		defaultBucket:    convention.Bucket(defaultNamespace),
		namespaces:       namespaces,
		buckets:          convention.Buckets(namespaces),
		namespaceBuckets: convention.NamespaceBuckets(known),
		localizedFields:  b.LocalizedFields(),
		relations:        relations,
		uniqueIndex:      b.UniqueIndex(),
	}
	d.fingerprint = fingerprint(d)
	return d, nil
}

func forced(r Relation) Relation {
	r.Indexed = true
	r.Aggregatable = true
	r.Taggable = true
	r.AutopopulateDepth = AutopopulateDepth
	return r
}
