package cluster

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// placeholder names that mean "nobody named this cluster yet"
var unnamedAliases = map[string]bool{
	"":           true,
	"unknown":    true,
	"unnamed":    true,
	"unassigned": true,
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeDisplayName normalizes a person name for comparison
// (lowercase, no diacritics, trimmed).
func NormalizeDisplayName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	return strings.TrimSpace(name)
}

// IsUnnamed reports whether a display name is empty or a placeholder.
// Moving a photo out of an unnamed cluster means the cluster was never a
// person the user cares about, so the photo leaves it entirely.
func IsUnnamed(name string) bool {
	return unnamedAliases[NormalizeDisplayName(name)]
}
