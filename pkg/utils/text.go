// Package utils provides shared utilities for text, math, and logging.
package utils

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	head, cut := Head(s, maxLen)
	if !cut {
		return s
	}
	return head + "..."
}

// Head returns the first n characters of s and whether anything was cut off.
// If n is 0 or negative, returns s unchanged.
func Head(s string, n int) (string, bool) {
	if n <= 0 || len(s) <= n {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
