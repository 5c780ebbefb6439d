package service

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTagCount  = 20
	MaxTagLength = 32
)

const (
	MsgTagEmpty    = "Tag cannot be empty."
	MsgTagExists   = "Tag already exists."
	MsgTagNotFound = "Tag not found."
)

// NormalizeTag lower-cases and trims a tag.
func NormalizeTag(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeTags normalizes every tag, dropping empties and duplicates while keeping
// first-seen order.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, r := range raw {
		tag := NormalizeTag(r)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// ValidateTagLimits returns a user-facing message when the tag set is too large or has
// an overlong tag, and "" otherwise.
func ValidateTagLimits(tags []string) string {
	if len(tags) > MaxTagCount {
		return fmt.Sprintf("You can add up to %d tags.", MaxTagCount)
	}
	for _, tag := range tags {
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return fmt.Sprintf("Tags must be %d characters or less.", MaxTagLength)
		}
	}
	return ""
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
