// Package strings holds small string helpers shared by config parsing.
package strings

import "strings"

// SplitList splits raw on sep, trims each part and drops empties and
// duplicates. Order is preserved.
//
//	SplitList(" a, b,,a ", ",") // []string{"a", "b"}
func SplitList(raw, sep string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, sep) {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
