package version

import "strings"

// Range expressions accepted in manifest dependency maps:
//
//	"*" or ""      any version
//	"1.2.3"        exactly that version
//	">=1.2"        that version or newer
//	"^1.2"         same major segment, that version or newer
type rangeKind int

const (
	rangeAny rangeKind = iota
	rangeExact
	rangeAtLeast
	rangeCaret
)

func parseRange(expr string) (rangeKind, string, bool) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "" || expr == "*":
		return rangeAny, "", true
	case strings.HasPrefix(expr, ">="):
		v := strings.TrimSpace(expr[2:])
		return rangeAtLeast, v, Valid(v)
	case strings.HasPrefix(expr, "^"):
		v := strings.TrimSpace(expr[1:])
		return rangeCaret, v, Valid(v)
	default:
		return rangeExact, expr, Valid(expr)
	}
}

// ValidRange reports whether expr is a syntactically valid range expression
func ValidRange(expr string) bool {
	_, _, ok := parseRange(expr)
	return ok
}

// Satisfies reports whether version v satisfies the range expression
func Satisfies(v, expr string) bool {
	kind, base, ok := parseRange(expr)
	if !ok {
		return false
	}
	switch kind {
	case rangeAny:
		return true
	case rangeExact:
		return Compare(v, base) == 0
	case rangeAtLeast:
		return Compare(v, base) >= 0
	case rangeCaret:
		return majorSegment(v) == majorSegment(base) && Compare(v, base) >= 0
	}
	return false
}

func majorSegment(v string) int {
	return segment(strings.Split(v, "."), 0)
}
