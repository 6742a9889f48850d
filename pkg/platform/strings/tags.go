// Package strings holds small text helpers shared by the registrant and segment code.
package strings

import (
	"strings"
	"unicode"
)

// CollapseSpace trims s and replaces every inner run of whitespace with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// NormalizeTags lower-cases and space-collapses each tag, then drops empties
// and repeats. First occurrence wins, so input order is kept.
//
//	NormalizeTags([]string{" Budgeting", "budgeting", "Emergency   Prep"})
//	// []string{"budgeting", "emergency prep"}
func NormalizeTags(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		tag := strings.ToLower(CollapseSpace(v))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
