// Package convention derives physical and relation names from namespaces.
//
// A namespace such as "Currency" maps to:
//
//	bucket:       currencies  (lower-cased plural, the physical grouping)
//	relation key: currency    (lower-cased singular, the relation field name)
//
// Multi-word namespaces are joined with underscores and only the last word
// is inflected: "Feature Type" maps to feature_types and feature_type.
package convention

import (
	"sort"
	"strings"
	"unicode"
)

// Bucket returns the bucket (collection name) for a namespace.
// Namespaces given in plural form map to the same bucket as their singular.
func Bucket(namespace string) string {
	return inflectLast(snake(namespace), func(w string) string {
		return Pluralize(Singularize(w))
	})
}

// RelationKey returns the relation field name for a namespace.
func RelationKey(namespace string) string {
	return inflectLast(snake(namespace), Singularize)
}

// snake lower-cases s and joins its words with underscores.
// Spaces, hyphens and underscores separate words.
func snake(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	return strings.Join(words, "_")
}

// inflectLast applies f to the last word of a snake_case name.
func inflectLast(name string, f func(string) string) string {
	if name == "" {
		return ""
	}
	i := strings.LastIndex(name, "_")
	return name[:i+1] + f(name[i+1:])
}

// Buckets returns the sorted, deduplicated buckets of the given namespaces.
func Buckets(namespaces []string) []string {
	seen := make(map[string]bool, len(namespaces))
	buckets := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		b := Bucket(ns)
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)
	return buckets
}

// NamespaceBuckets maps each namespace to its bucket.
func NamespaceBuckets(namespaces []string) map[string]string {
	out := make(map[string]string, len(namespaces))
	for _, ns := range namespaces {
		if b := Bucket(ns); b != "" {
			out[ns] = b
		}
	}
	return out
}
