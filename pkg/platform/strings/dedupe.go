// Package strings holds helpers for the space- and comma-delimited lists that
// OAuth parameters are made of.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and blank entries, trimming each element.
// Order of first occurrence is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SplitSpaceDelimited parses an OAuth list parameter ("openid profile email").
func SplitSpaceDelimited(raw string) []string {
	return DedupeAndTrim(strings.Fields(raw))
}

// Missing returns the values not present in allowed, in the order they appear in values.
func Missing(values, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	var out []string
	for _, v := range values {
		if _, ok := set[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// ContainsAll reports whether every value is present in set.
func ContainsAll(set, values []string) bool {
	return len(Missing(values, set)) == 0
}

// Contains reports whether value is in values.
func Contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
