package utils

import "strings"

// Preview collapses whitespace and truncates text to at most limit runes,
// appending an ellipsis when something was cut.
func Preview(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= limit {
		return flat
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}
