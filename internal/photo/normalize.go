package photo

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeTag normalizes a tag for comparison:
// 1. Trim leading/trailing whitespace
// 2. Lowercase
// 3. Collapse internal whitespace to single spaces
func NormalizeTag(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// HasTag reports whether the record carries tag, compared after normalization.
func (r Record) HasTag(tag string) bool {
	want := NormalizeTag(tag)
	if want == "" {
		return false
	}
	for _, t := range r.Tags {
		if NormalizeTag(t) == want {
			return true
		}
	}
	return false
}
