package schema

import "sort"

// JSONSchema returns a JSON Schema object describing a predefine document.
// Localized fields are objects with one string property per locale; the
// default locale is required on name.
func (d *Descriptor) JSONSchema() map[string]any {
	namespaces := make([]any, 0, len(d.namespaceBuckets))
	bucketSet := map[string]bool{}
	var buckets []any
	for _, ns := range sortedKeys(d.namespaceBuckets) {
		namespaces = append(namespaces, ns)
		if b := d.namespaceBuckets[ns]; !bucketSet[b] {
			bucketSet[b] = true
			buckets = append(buckets, b)
		}
	}

	relations := map[string]any{}
	for _, name := range d.relations.Names() {
		r := d.relations[name]
		relations[name] = map[string]any{
			"type":           "string",
			"description":    "id of the referenced " + r.Ref,
			"x-ref":          r.Ref,
			"x-index":        r.Indexed,
			"x-aggregatable": r.Aggregatable,
			"x-taggable":     r.Taggable,
			"x-autopopulate": r.AutopopulateDepth,
		}
	}

	timestamp := map[string]any{"type": "string", "format": "date-time", "readOnly": true}

	return map[string]any{
		"$schema":       "http://json-schema.org/draft-07/schema#",
		"title":         d.modelName,
		"type":          "object",
		"x-collection":  d.collection,
		"x-fingerprint": d.fingerprint,
		"properties": map[string]any{
			"_id": map[string]any{"type": "string", "readOnly": true},
			"namespace": map[string]any{
				"type":    "string",
				"enum":    namespaces,
				"default": d.defaultNamespace,
			},
			"bucket": map[string]any{
				"type":     "string",
				"enum":     buckets,
				"default":  d.defaultBucket,
				"readOnly": true,
			},
			"code":         map[string]any{"type": "string"},
			"name":         d.localizedSchema(true),
			"abbreviation": d.localizedSchema(false),
			"description":  d.localizedSchema(false),
			"symbol":       map[string]any{"type": "string"},
			"weight":       map[string]any{"type": "number", "default": 0},
			"color":        map[string]any{"type": "string"},
			"icon":         map[string]any{"type": "string"},
			"geometry":     map[string]any{"type": "object"},
			"properties":   map[string]any{"type": "object"},
			"relations": map[string]any{
				"type":                 "object",
				"properties":           relations,
				"additionalProperties": false,
			},
			"populate": map[string]any{
				"type":     "object",
				"readOnly": true,
			},
			"createdAt": timestamp,
			"updatedAt": timestamp,
			"deletedAt": timestamp,
		},
		"required": []any{"namespace", "name"},
	}
}

func (d *Descriptor) localizedSchema(requireDefault bool) map[string]any {
	props := map[string]any{}
	for _, l := range d.Locales() {
		props[l] = map[string]any{"type": "string"}
	}
	s := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if requireDefault {
		s["required"] = []any{d.DefaultLocale()}
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
