package post

import (
	"strings"
)

// Hashtag limits.
const (
	MaxHashtags      = 20
	MaxHashtagLength = 30
)

// ParseHashtags normalizes free text into hashtags: tokens are split on
// whitespace, commas and '#', lowercased, stripped to [a-z0-9_], truncated
// to MaxHashtagLength, deduplicated in first-seen order and capped at
// MaxHashtags. Parsing the space-joined output again yields the same list.
func ParseHashtags(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == '#' || r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	tags := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		tag := sanitize(field)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == MaxHashtags {
			break
		}
	}
	return tags
}

func sanitize(token string) string {
	var b strings.Builder
	b.Grow(len(token))
	for _, r := range token {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			if b.Len() == MaxHashtagLength {
				break
			}
		}
	}
	return b.String()
}

// FormatHashtags renders hashtags for display, e.g. "#travel #lisbon".
func FormatHashtags(tags []string) string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = "#" + t
	}
	return strings.Join(out, " ")
}
