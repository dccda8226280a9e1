package schema

import (
	"strings"
	"unicode"
)

// identityKey merges author aliases by lower-cased email, falling back to the name.
func identityKey(name, email string) string {
	if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
		return e
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// AbbreviateName formats "Samuel Huang" as "Samuel H" for narrow table columns.
// Single-word names and bot accounts are returned unchanged.
func AbbreviateName(name string) string {
	trimmed := strings.TrimSpace(name)
	if strings.Contains(trimmed, "[bot]") {
		return trimmed
	}
	parts := strings.FieldsFunc(strings.Trim(trimmed, "()\"'`"), unicode.IsSpace)
	if len(parts) < 2 {
		return strings.Join(parts, " ")
	}
	last := []rune(parts[len(parts)-1])
	return parts[0] + " " + string(last[0])
}
