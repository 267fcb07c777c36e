package text

import "strings"

// Tokens returns every lower-cased word of s, stop words included.
func Tokens(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}
