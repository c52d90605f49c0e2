package schema

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/artpar/predefine/core/locale"
)

// Descriptor is the immutable schema of the predefine document model.
// All accessors return copies; a Descriptor is safe for concurrent use.
type Descriptor struct {
	modelName        string
	collection       string
	deriver          *locale.Deriver
	defaultNamespace string
	defaultBucket    string
	namespaces       []string
	buckets          []string
	namespaceBuckets map[string]string
	localizedFields  map[string][]string
	relations        Relations
	uniqueIndex      []IndexField
	fingerprint      string
}

// ModelName returns the document model name.
func (d *Descriptor) ModelName() string { return d.modelName }

// Collection returns the physical collection name.
func (d *Descriptor) Collection() string { return d.collection }

// Deriver returns the locale deriver of the descriptor's locale set.
func (d *Descriptor) Deriver() *locale.Deriver { return d.deriver }

// DefaultLocale returns the fallback locale.
func (d *Descriptor) DefaultLocale() string { return d.deriver.DefaultLocale() }

// Locales returns the supported locales in configured order.
func (d *Descriptor) Locales() []string { return d.deriver.Locales() }

// DefaultNamespace returns the namespace given to documents without one.
func (d *Descriptor) DefaultNamespace() string { return d.defaultNamespace }

// DefaultBucket returns the bucket of the default namespace.
func (d *Descriptor) DefaultBucket() string { return d.defaultBucket }

// Namespaces returns the configured namespaces.
func (d *Descriptor) Namespaces() []string {
	return append([]string(nil), d.namespaces...)
}

// Buckets returns the buckets of the configured namespaces, sorted.
func (d *Descriptor) Buckets() []string {
	return append([]string(nil), d.buckets...)
}

// NamespaceBuckets maps every known namespace, the default one included,
// to its bucket.
func (d *Descriptor) NamespaceBuckets() map[string]string {
	out := make(map[string]string, len(d.namespaceBuckets))
	for ns, b := range d.namespaceBuckets {
		out[ns] = b
	}
	return out
}

// BucketOf returns the bucket of a known namespace.
func (d *Descriptor) BucketOf(namespace string) (string, bool) {
	b, ok := d.namespaceBuckets[namespace]
	return b, ok
}

// NamespaceOf returns the namespace a known bucket belongs to.
// When several namespaces share a bucket the first in sorted order is returned.
func (d *Descriptor) NamespaceOf(bucket string) (string, bool) {
	var found []string
	for ns, b := range d.namespaceBuckets {
		if b == bucket {
			found = append(found, ns)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	sort.Strings(found)
	return found[0], true
}

// HasBucket reports whether bucket belongs to a known namespace.
func (d *Descriptor) HasBucket(bucket string) bool {
	_, ok := d.NamespaceOf(bucket)
	return ok
}

// LocalizedFields returns the per-locale field names of base, or nil when
// base is not localized.
func (d *Descriptor) LocalizedFields(base string) []string {
	return append([]string(nil), d.localizedFields[base]...)
}

// AllLocalizedFields returns every per-locale field name, sorted.
func (d *Descriptor) AllLocalizedFields() []string {
	var out []string
	for _, base := range LocalizedBases {
		out = append(out, d.localizedFields[base]...)
	}
	sort.Strings(out)
	return out
}

// Relations returns a copy of the assembled relations.
func (d *Descriptor) Relations() Relations {
	return d.relations.clone()
}

// Relation returns the named relation.
func (d *Descriptor) Relation(name string) (Relation, bool) {
	r, ok := d.relations[name]
	if !ok {
		return Relation{}, false
	}
	return r.clone(), true
}

// RelationNames returns the relation names in sorted order.
func (d *Descriptor) RelationNames() []string {
	return d.relations.Names()
}

// UniqueIndex returns the compound unique index.
func (d *Descriptor) UniqueIndex() []IndexField {
	return append([]IndexField(nil), d.uniqueIndex...)
}

// Fingerprint returns a stable hash of the descriptor contents.
// It changes whenever locales, namespaces, relations or the index change.
func (d *Descriptor) Fingerprint() string { return d.fingerprint }

// Summary is the serializable form of a descriptor.
type Summary struct {
	ModelName        string              `json:"modelName" yaml:"model_name"`
	Collection       string              `json:"collection" yaml:"collection"`
	DefaultLocale    string              `json:"defaultLocale" yaml:"default_locale"`
	Locales          []string            `json:"locales" yaml:"locales"`
	DefaultNamespace string              `json:"defaultNamespace" yaml:"default_namespace"`
	DefaultBucket    string              `json:"defaultBucket" yaml:"default_bucket"`
	Namespaces       []string            `json:"namespaces" yaml:"namespaces"`
	Buckets          []string            `json:"buckets" yaml:"buckets"`
	NamespaceBuckets map[string]string   `json:"namespaceBuckets" yaml:"namespace_buckets"`
	LocalizedFields  map[string][]string `json:"localizedFields" yaml:"localized_fields"`
	Relations        Relations           `json:"relations" yaml:"relations"`
	UniqueIndex      []IndexField        `json:"uniqueIndex" yaml:"unique_index"`
	Fingerprint      string              `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

// Summary returns the serializable form of the descriptor.
func (d *Descriptor) Summary() Summary {
	fields := make(map[string][]string, len(d.localizedFields))
	for base, names := range d.localizedFields {
		fields[base] = append([]string(nil), names...)
	}
	return Summary{
		ModelName:        d.modelName,
		Collection:       d.collection,
		DefaultLocale:    d.DefaultLocale(),
		Locales:          d.Locales(),
		DefaultNamespace: d.defaultNamespace,
		DefaultBucket:    d.defaultBucket,
		Namespaces:       d.Namespaces(),
		Buckets:          d.Buckets(),
		NamespaceBuckets: d.NamespaceBuckets(),
		LocalizedFields:  fields,
		Relations:        d.Relations(),
		UniqueIndex:      d.UniqueIndex(),
		Fingerprint:      d.fingerprint,
	}
}

// fingerprint hashes the JSON form of the summary without its fingerprint.
// encoding/json sorts map keys, so equal descriptors hash equally.
func fingerprint(d *Descriptor) string {
	s := d.Summary()
	s.Fingerprint = ""
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
