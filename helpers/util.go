package helpers

import (
	"errors"
	"strings"
)

// GetSplitPart returns the index-th part of target split on separate
func GetSplitPart(target string, separate string, index int) (string, error) {
	parts := strings.Split(target, separate)
	if index >= len(parts) {
		return "", errors.New("index out of range")
	}
	return parts[index], nil
}

// LastRunes returns the final n runes of s, or all of s when it is shorter
func LastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
