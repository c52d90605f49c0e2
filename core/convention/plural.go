package convention

import "strings"

// Pluralize returns the plural form of a word.
// Uses simple English pluralization rules; case of the first letter is kept.
func Pluralize(word string) string {
	if word == "" {
		return ""
	}

	lower := strings.ToLower(word)

	if uncountable[lower] {
		return word
	}

	// Check irregular plurals first
	if plural, ok := irregularPlurals[lower]; ok {
		return matchCase(word, plural)
	}

	// Words ending in 's', 'x', 'z', 'ch', 'sh' → add 'es'
	if strings.HasSuffix(lower, "s") ||
		strings.HasSuffix(lower, "x") ||
		strings.HasSuffix(lower, "z") ||
		strings.HasSuffix(lower, "ch") ||
		strings.HasSuffix(lower, "sh") {
		return word + "es"
	}

	// Words ending in consonant + 'y' → change 'y' to 'ies'
	if strings.HasSuffix(lower, "y") && len(word) > 1 {
		if !isVowel(rune(lower[len(lower)-2])) {
			return word[:len(word)-1] + "ies"
		}
	}

	// Words ending in 'f' or 'fe' → change to 'ves'
	if strings.HasSuffix(lower, "fe") {
		return word[:len(word)-2] + "ves"
	}
	if strings.HasSuffix(lower, "f") && !strings.HasSuffix(lower, "ff") {
		return word[:len(word)-1] + "ves"
	}

	return word + "s"
}

// Singularize returns the singular form of a word.
// Inverse of Pluralize. Words that are already singular are returned as is.
func Singularize(word string) string {
	if word == "" {
		return ""
	}

	lower := strings.ToLower(word)

	if uncountable[lower] {
		return word
	}

	// Already a known singular (e.g. "status", "analysis")
	if _, ok := irregularPlurals[lower]; ok {
		return word
	}

	// Check irregular singulars
	for singular, plural := range irregularPlurals {
		if plural == lower {
			return matchCase(word, singular)
		}
	}

	// Words ending in 'ies' → change to 'y'
	if strings.HasSuffix(lower, "ies") && len(lower) > 3 {
		return word[:len(word)-3] + "y"
	}

	// Words ending in 'ves' → change to 'f'
	if strings.HasSuffix(lower, "ves") {
		return word[:len(word)-3] + "f"
	}

	// Words ending in 'es' (after sibilants) → remove 'es'
	if strings.HasSuffix(lower, "sses") ||
		strings.HasSuffix(lower, "xes") ||
		strings.HasSuffix(lower, "zes") ||
		strings.HasSuffix(lower, "ches") ||
		strings.HasSuffix(lower, "shes") {
		return word[:len(word)-2]
	}

	// Words ending in 's' → remove 's'
	if strings.HasSuffix(lower, "s") &&
		!strings.HasSuffix(lower, "ss") &&
		!strings.HasSuffix(lower, "us") &&
		!strings.HasSuffix(lower, "is") {
		return word[:len(word)-1]
	}

	return word
}

// matchCase returns replacement with the first letter upper-cased when
// the original word starts with an upper-case letter.
func matchCase(word, replacement string) string {
	if word[0] >= 'A' && word[0] <= 'Z' {
		return strings.ToUpper(replacement[:1]) + replacement[1:]
	}
	return replacement
}

// isVowel returns true if the rune is a vowel.
func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	default:
		return false
	}
}

// Words with identical singular and plural forms.
var uncountable = map[string]bool{
	"equipment":   true,
	"information": true,
	"series":      true,
	"species":     true,
	"sheep":       true,
	"fish":        true,
	"news":        true,
	"metadata":    true,
}

// Common irregular plurals, keyed by lower-case singular.
var irregularPlurals = map[string]string{
	"person":   "people",
	"man":      "men",
	"woman":    "women",
	"child":    "children",
	"foot":     "feet",
	"tooth":    "teeth",
	"goose":    "geese",
	"mouse":    "mice",
	"ox":       "oxen",
	"index":    "indices",
	"matrix":   "matrices",
	"vertex":   "vertices",
	"analysis": "analyses",
	"crisis":   "crises",
	"thesis":   "theses",
	"datum":    "data",
	"medium":   "media",
	"schema":   "schemas",
	"status":   "statuses",
	"bus":      "buses",
	"campus":   "campuses",
	"gas":      "gases",
	"atlas":    "atlases",
	"alias":    "aliases",
	"bias":     "biases",
	"canvas":   "canvases",
	"movie":    "movies",
	"cookie":   "cookies",
	"calorie":  "calories",
	"zombie":   "zombies",
	"pie":      "pies",
	"tie":      "ties",
}
