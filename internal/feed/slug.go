package feed

import (
	"regexp"
	"strings"
)

var nonSlugRunRe = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveSlug lowercases an ASCII title and joins its alphanumeric runs with
// hyphens. Titles with any non-ASCII character are not transliterated; they get
// fallbackID instead, as does a title with no alphanumerics at all.
func DeriveSlug(title string, fallbackID string) string {
	if !isBasicASCII(title) {
		return fallbackID
	}

	slug := nonSlugRunRe.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return fallbackID
	}

	return slug
}

func isBasicASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}

	return true
}
