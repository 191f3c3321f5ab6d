// Package version compares dotted numeric version strings.
package version

import (
	"strconv"
	"strings"
)

// Compare orders two dotted numeric versions, returning -1, 0, or 1.
// Segment counts may differ; missing trailing segments count as zero,
// so "1.2" equals "1.2.0". Non-numeric segments compare as zero; the
// manifest validator rejects them before they reach this point.
func Compare(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		av := segment(as, i)
		bv := segment(bs, i)
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

// IsUpdateAvailable reports whether remote is strictly newer than installed
func IsUpdateAvailable(remote, installed string) bool {
	return Compare(remote, installed) > 0
}

// Valid reports whether v is a non-empty sequence of non-negative integer segments
func Valid(v string) bool {
	if v == "" {
		return false
	}
	for _, seg := range strings.Split(v, ".") {
		if seg == "" {
			return false
		}
		n, err := strconv.Atoi(seg)
		if err != nil || n < 0 {
			return false
		}
	}
	return true
}

func segment(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
