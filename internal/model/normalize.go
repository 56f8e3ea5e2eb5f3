package model

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// CleanName trims a display name and collapses internal whitespace.
// Case is preserved.
func CleanName(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// CleanTags trims tags, drops empties and removes duplicates (first wins).
func CleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = CleanName(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// GroupColors lists the tab group colors the browser accepts.
var GroupColors = []string{"grey", "blue", "red", "yellow", "green", "pink", "purple", "cyan", "orange"}

// DefaultGroupColor is used when no color is supplied.
const DefaultGroupColor = "grey"

// ValidColor reports whether c is an accepted tab group color.
func ValidColor(c string) bool {
	for _, known := range GroupColors {
		if c == known {
			return true
		}
	}
	return false
}
