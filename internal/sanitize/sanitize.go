// Package sanitize repairs near-JSON text returned by language models before
// it reaches a strict parser.
package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	fenceMarker     = "'''"
	jsonFenceMarker = "'''json\n"
)

// punctuation maps typographic quotes and backticks to straight ASCII quotes.
var punctuation = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
	"`", "'",
)

// Sanitize normalizes smart quotes and backticks, un-escapes `\_`, and strips
// code fence markers. The transform runs to a fixed point, so the result never
// contains any of those artifacts and Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	s = punctuation.Replace(s)
	for {
		next := strings.ReplaceAll(s, `\_`, "_")
		next = strings.ReplaceAll(next, jsonFenceMarker, "")
		next = strings.ReplaceAll(next, fenceMarker, "")
		if next == s {
			return s
		}
		s = next
	}
}

// JSON sanitizes s and decodes it into v.
func JSON(s string, v any) error {
	clean := strings.TrimSpace(Sanitize(s))
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("decoding sanitized response: %w", err)
	}
	return nil
}
