// Package strings normalizes identifier lists before they are counted or
// committed to.
package strings

import (
	"strings"
)

// Fold trims and lowercases an identifier.
func Fold(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// DedupeFold returns the distinct folded values in first-seen order.
// Blank values are dropped.
//
//	DedupeFold([]string{"  Alice ", "bob", "ALICE", ""}) // ["alice", "bob"]
func DedupeFold(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		f := Fold(v)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// CountDistinct is len(DedupeFold(values)) without building the slice.
func CountDistinct(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if f := Fold(v); f != "" {
			seen[f] = struct{}{}
		}
	}
	return len(seen)
}

// Duplicates counts non-blank values that repeat an earlier one.
func Duplicates(values []string) int {
	nonBlank := 0
	for _, v := range values {
		if Fold(v) != "" {
			nonBlank++
		}
	}
	return nonBlank - CountDistinct(values)
}
