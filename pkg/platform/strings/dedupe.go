// Package strings provides string-set helpers for module ids, language
// reference sets and usernames.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  900000000000207008 ", "", "900000000000207008"})
//	// Returns: []string{"900000000000207008"}
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower is DedupeAndTrim with lowercasing, used for usernames.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			result = append(result, n)
		}
	}
	return result
}

// SortedSet returns the trimmed, deduplicated values in ascending order.
func SortedSet(values []string) []string {
	out := DedupeAndTrim(values)
	out = slices.Clone(out)
	slices.Sort(out)
	return out
}

// SameSet reports whether a and b hold the same members, ignoring order,
// duplicates and surrounding whitespace. Nil and empty are equal.
func SameSet(a, b []string) bool {
	return slices.Equal(SortedSet(a), SortedSet(b))
}
