package predefine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/predefine/core/locale"
	"github.com/artpar/predefine/core/schema"
)

// readOnlyFields are ignored by ApplyChanges.
var readOnlyFields = map[string]bool{
	"_id":       true,
	"bucket":    true,
	"createdAt": true,
	"updatedAt": true,
	"deletedAt": true,
}

// mergedFields are object fields whose keys are merged by ApplyChanges
// instead of replaced.
var mergedFields = map[string]bool{
	"name":         true,
	"abbreviation": true,
	"description":  true,
	"properties":   true,
	"relations":    true,
}

// Normalize validates doc against the descriptor and fills derived values.
//
// The namespace defaults to the namespace owning doc.Bucket, else to the
// descriptor's default namespace. It must be known; the bucket is derived
// from it. Localized values get an entry for every supported locale. A
// missing abbreviation is derived from the name.
// Relations must be declared and empty relation ids are dropped.
//
// Normalize does not check that referenced documents exist.
func Normalize(desc *schema.Descriptor, doc Document) (Document, error) {
	verr := &ValidationError{}

	doc.Namespace = strings.TrimSpace(doc.Namespace)
	if doc.Namespace == "" && doc.Bucket != "" {
		ns, ok := desc.NamespaceOf(doc.Bucket)
		if !ok {
			verr.Add("bucket", fmt.Sprintf("unknown bucket %q", doc.Bucket))
		}
		doc.Namespace = ns
	}
	if doc.Namespace == "" {
		doc.Namespace = desc.DefaultNamespace()
	}
	bucket, ok := desc.BucketOf(doc.Namespace)
	switch {
	case !ok:
		verr.Add("namespace", fmt.Sprintf("unknown namespace %q", doc.Namespace))
	case doc.Bucket != "" && doc.Bucket != bucket:
		verr.Add("bucket", fmt.Sprintf("bucket %q does not match namespace %q", doc.Bucket, doc.Namespace))
	default:
		doc.Bucket = bucket
	}

	doc.Code = strings.TrimSpace(doc.Code)
	if doc.Code == "" {
		verr.Add("code", "is required")
	}

	d := desc.Deriver()
	if !hasText(doc.Name) {
		verr.Add("name", "is required")
	}
	doc.Name = d.Normalize(doc.Name)

	if hasText(doc.Abbreviation) {
		doc.Abbreviation = d.Normalize(doc.Abbreviation)
	} else {
		doc.Abbreviation = d.NormalizeAbbreviation(doc.Name)
	}

	if hasText(doc.Description) {
		doc.Description = d.Normalize(doc.Description)
	} else {
		doc.Description = nil
	}

	if len(doc.Relations) > 0 {
		rels := make(map[string]Ref, len(doc.Relations))
		for name, ref := range doc.Relations {
			if _, ok := desc.Relation(name); !ok {
				verr.Add("relations."+name, "unknown relation")
				continue
			}
			if id := strings.TrimSpace(ref.ID); id != "" {
				rels[name] = Ref{ID: id}
			}
		}
		doc.Relations = rels
	}
	if len(doc.Relations) == 0 {
		doc.Relations = nil
	}

	if err := verr.OrNil(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// ApplyChanges returns doc with changes merged in.
// Localized values, properties and relations are merged key by key; other
// fields are replaced. Read-only fields are ignored. Changing the namespace
// clears the bucket so Normalize derives it again. When a name changes and
// changes carry no abbreviation, abbreviations that were derived from the
// old name follow the new one; custom abbreviations are kept.
func ApplyChanges(doc Document, changes Changes) (Document, error) {
	base, err := toMap(doc)
	if err != nil {
		return Document{}, err
	}

	for key, value := range changes {
		if readOnlyFields[key] {
			continue
		}
		if parent, child, ok := strings.Cut(key, "."); ok && mergedFields[parent] {
			m, _ := base[parent].(map[string]any)
			if m == nil {
				m = map[string]any{}
			}
			m[child] = value
			base[parent] = m
			continue
		}
		if nested, ok := value.(map[string]any); ok && mergedFields[key] {
			m, _ := base[key].(map[string]any)
			if m == nil {
				m = map[string]any{}
			}
			for k, v := range nested {
				m[k] = v
			}
			base[key] = m
			continue
		}
		base[key] = value
		if key == "namespace" {
			delete(base, "bucket")
		}
	}

	data, err := json.Marshal(base)
	if err != nil {
		return Document{}, NewValidationError("", err.Error())
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return Document{}, decodeError(err)
	}
	out.ID = doc.ID
	out.CreatedAt = doc.CreatedAt
	out.UpdatedAt = doc.UpdatedAt
	out.DeletedAt = doc.DeletedAt
	if !changes.Touches("abbreviation") {
		out.Abbreviation = rederive(doc, out)
	}
	return out, nil
}

// rederive returns after's abbreviations with derived entries recomputed for
// locales whose name changed.
func rederive(before, after Document) locale.Value {
	if len(after.Abbreviation) == 0 {
		return after.Abbreviation
	}
	out := make(locale.Value, len(after.Abbreviation))
	for l, abbr := range after.Abbreviation {
		oldName, newName := before.Name[l], after.Name[l]
		if oldName != newName && abbr == locale.Abbreviate(oldName) {
			abbr = locale.Abbreviate(newName)
		}
		if abbr != "" {
			out[l] = abbr
		}
	}
	return out
}

// Decode parses a JSON document body.
// Type mismatches are reported as validation errors.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, decodeError(err)
	}
	return doc, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return NewValidationError(typeErr.Field, "must be "+typeErr.Type.String())
	}
	return NewValidationError("body", err.Error())
}

func toMap(doc Document) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return m, nil
}

func hasText(v locale.Value) bool {
	for _, s := range v {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}
