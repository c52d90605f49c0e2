// Package locale derives localized field names and normalizes localized values.
//
// A localized value is a map from locale code to text. After normalization
// every supported locale has an entry; locales without their own value take
// the fallback, which is the default-locale value when present, otherwise
// the first non-empty value in configured locale order, otherwise the first
// non-empty value of the remaining keys in sorted order.
package locale

import (
	"sort"
	"strings"
	"unicode"
)

// Value is a localized text value keyed by locale code.
type Value map[string]string

// Deriver derives localized fields for a fixed locale set.
// It is immutable and safe for concurrent use.
type Deriver struct {
	defaultLocale string
	locales       []string
}

// NewDeriver creates a deriver for the given default locale and locale set.
// The default locale is added to the set when missing.
func NewDeriver(defaultLocale string, locales []string) *Deriver {
	seen := map[string]bool{}
	set := make([]string, 0, len(locales)+1)
	for _, l := range locales {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		set = append(set, l)
	}
	if !seen[defaultLocale] {
		set = append([]string{defaultLocale}, set...)
	}
	return &Deriver{defaultLocale: defaultLocale, locales: set}
}

// DefaultLocale returns the fallback locale.
func (d *Deriver) DefaultLocale() string {
	return d.defaultLocale
}

// Locales returns a copy of the ordered locale set.
func (d *Deriver) Locales() []string {
	return append([]string(nil), d.locales...)
}

// FieldNames returns "<base>.<locale>" for every locale, sorted and deduplicated.
func (d *Deriver) FieldNames(base string) []string {
	seen := make(map[string]bool, len(d.locales))
	fields := make([]string, 0, len(d.locales))
	for _, l := range d.locales {
		f := base + "." + l
		if seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Normalize returns a value with an entry for every locale.
// Present non-empty values are kept; the rest take the fallback, which may
// be empty when partial holds no text at all. Keys outside the locale set
// are dropped.
func (d *Deriver) Normalize(partial Value) Value {
	fallback := d.fallback(partial)
	out := make(Value, len(d.locales))
	for _, l := range d.locales {
		if v := partial[l]; v != "" {
			out[l] = v
			continue
		}
		out[l] = fallback
	}
	return out
}

// NormalizeAbbreviation resolves every locale like Normalize, abbreviates
// each value and drops locales whose abbreviation is empty.
func (d *Deriver) NormalizeAbbreviation(partial Value) Value {
	fallback := d.fallback(partial)
	out := make(Value, len(d.locales))
	for _, l := range d.locales {
		v := partial[l]
		if v == "" {
			v = fallback
		}
		if abbr := Abbreviate(v); abbr != "" {
			out[l] = abbr
		}
	}
	return out
}

// fallback picks the value used for locales missing from partial.
func (d *Deriver) fallback(partial Value) string {
	if v := partial[d.defaultLocale]; v != "" {
		return v
	}
	for _, l := range d.locales {
		if v := partial[l]; v != "" {
			return v
		}
	}

	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := partial[k]; v != "" {
			return v
		}
	}
	return ""
}

// Abbreviate returns the upper-cased first letter of every word in s.
//
//	Abbreviate("Tomato")               // "T"
//	Abbreviate("United States Dollar") // "USD"
func Abbreviate(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	for _, w := range words {
		for _, r := range w {
			b.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	return b.String()
}
