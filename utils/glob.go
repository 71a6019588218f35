package utils

import "strings"

// GlobMatch reports whether s matches pattern. '*' matches any run
// of characters including the empty one, '?' matches exactly one
// character. Matching is case-insensitive.
func GlobMatch(pattern, s string) bool {
	p := strings.ToLower(pattern)
	t := strings.ToLower(s)

	pi, ti := 0, 0
	star, mark := -1, 0

	for ti < len(t) {
		switch {
		case pi < len(p) && p[pi] == '*':
			// Remember the star; try matching it against nothing first.
			star = pi
			mark = ti
			pi++
		case pi < len(p) && (p[pi] == '?' || p[pi] == t[ti]):
			pi++
			ti++
		case star >= 0:
			// Backtrack: let the last star swallow one more character.
			mark++
			pi = star + 1
			ti = mark
		default:
			return false
		}
	}

	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
