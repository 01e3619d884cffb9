package validators

import (
	"strings"
	"unicode"
)

// CleanText trims input, folds every whitespace run (newlines and tabs included) into one
// space, drops control characters and keeps at most maxRunes runes. maxRunes <= 0 keeps
// the whole value.
func CleanText(input string, maxRunes int) string {
	var b strings.Builder
	count := 0
	space := false
	for _, r := range input {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		need := 1
		if space {
			need = 2
		}
		if maxRunes > 0 && count+need > maxRunes {
			break
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
		count += need
	}
	return b.String()
}
