package config

import "strings"

// DefaultLocale returns the locale used as fallback for localized values.
func (c *Config) DefaultLocale() string {
	if v := strings.TrimSpace(c.Locale.Default); v != "" {
		if canonical, err := canonicalLocale(v); err == nil {
			return canonical
		}
		return v
	}
	return DefaultLocale
}

// Locales returns the ordered set of supported locales.
// The default locale is always a member; it is prepended when missing.
func (c *Config) Locales() []string {
	def := c.DefaultLocale()

	locales := make([]string, 0, len(c.Locale.Supported)+1)
	for _, l := range c.Locale.Supported {
		if canonical, err := canonicalLocale(l); err == nil {
			l = canonical
		}
		locales = append(locales, l)
	}

	locales = orderedSet(locales)
	for _, l := range locales {
		if l == def {
			return locales
		}
	}
	return append([]string{def}, locales...)
}

// DefaultNamespace returns the namespace assigned to documents without one.
func (c *Config) DefaultNamespace() string {
	if v := strings.TrimSpace(c.Predefine.DefaultNamespace); v != "" {
		return v
	}
	return DefaultNamespace
}

// Namespaces returns the ordered set of configured namespaces.
func (c *Config) Namespaces() []string {
	namespaces := orderedSet(c.Predefine.Namespaces)
	if len(namespaces) == 0 {
		return []string{c.DefaultNamespace()}
	}
	return namespaces
}

// RawRelations returns a copy of the raw relation declarations.
func (c *Config) RawRelations() map[string]map[string]any {
	out := make(map[string]map[string]any, len(c.Predefine.Relations))
	for name, props := range c.Predefine.Relations {
		cp := make(map[string]any, len(props))
		for k, v := range props {
			cp[k] = v
		}
		out[strings.TrimSpace(name)] = cp
	}
	return out
}

// ModelName returns the document model name used as the default relation target.
func (c *Config) ModelName() string {
	if v := strings.TrimSpace(c.Predefine.ModelName); v != "" {
		return v
	}
	return DefaultModelName
}

// CollectionName returns the physical collection (table) name.
func (c *Config) CollectionName() string {
	if v := strings.TrimSpace(c.Predefine.CollectionName); v != "" {
		return v
	}
	return DefaultCollectionName
}

// orderedSet trims values and removes blanks and duplicates, keeping first occurrences.
func orderedSet(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
