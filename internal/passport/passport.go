// Package passport normalizes passport ID strings into a canonical form so
// values entered with different spacing, punctuation, or case compare
// equal. Every function here is pure: no I/O, no database access.
package passport

import (
	"regexp"
	"strings"
)

// separatorPattern matches runs of whitespace, dots, hyphens, slashes, and
// commas — the punctuation staff commonly insert when copying a passport
// number off a card by hand.
var separatorPattern = regexp.MustCompile(`[\s.\-/,]+`)

// formatPattern is the shape a normalized passport ID must have: an
// optional leading letter followed by digits only.
var formatPattern = regexp.MustCompile(`^[A-Z]?[0-9]+$`)

const (
	// DefaultMinLength is the shortest a normalized passport ID may be.
	DefaultMinLength = 5
	// DefaultMaxLength is the longest a normalized passport ID may be.
	DefaultMaxLength = 12
)

// Bounds returns the (min, max) length to enforce, substituting the
// defaults for any non-positive value.
func Bounds(minLen, maxLen int) (int, int) {
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	return minLen, maxLen
}

// Normalize canonicalizes a single raw passport ID: uppercases it, strips
// separator characters, and validates both the resulting format and its
// length against the given bounds. Returns ("", false) if raw does not
// normalize to a valid passport ID.
func Normalize(raw string, minLen, maxLen int) (string, bool) {
	minLen, maxLen = Bounds(minLen, maxLen)

	candidate := strings.ToUpper(strings.TrimSpace(raw))
	candidate = separatorPattern.ReplaceAllString(candidate, "")
	if candidate == "" {
		return "", false
	}
	if !formatPattern.MatchString(candidate) {
		return "", false
	}
	if len(candidate) < minLen || len(candidate) > maxLen {
		return "", false
	}
	return candidate, true
}

// NormalizeCandidates normalizes a set of raw passport ID candidates
// (e.g. alternate OCR readings), de-duplicating the result while preserving
// first-seen order. Invalid candidates are silently dropped.
func NormalizeCandidates(raws []string, minLen, maxLen int) []string {
	seen := make(map[string]bool, len(raws))
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		norm, ok := Normalize(raw, minLen, maxLen)
		if !ok || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}
