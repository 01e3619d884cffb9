package enums

import (
	"fmt"
	"slices"
	"strings"
)

// set is the closed list of values a string enum accepts.
type set[T ~string] []T

func (s set[T]) has(v T) bool {
	return slices.Contains(s, v)
}

// parseUpper trims and upper-cases raw before matching, for values typed by people.
func (s set[T]) parseUpper(kind, raw string) (T, error) {
	v := T(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.has(v) {
		return "", fmt.Errorf("invalid %s %q", kind, raw)
	}
	return v, nil
}
