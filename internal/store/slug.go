package store

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const fallbackSlug = "artwork"

// Slugify turns a title into a URL slug: lower-case ASCII letters and digits
// separated by single hyphens
func Slugify(title string) string {
	var b strings.Builder
	pendingHyphen := false

	for _, r := range norm.NFD.String(strings.ToLower(title)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining accent left over from decomposition
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}

	if b.Len() == 0 {
		return fallbackSlug
	}
	return b.String()
}

// UniqueSlug returns base if free, otherwise the first of base-1, base-2, ...
// not present in taken
func UniqueSlug(base string, taken []string) string {
	used := make(map[string]bool, len(taken))
	for _, s := range taken {
		used[s] = true
	}
	if !used[base] {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "-" + strconv.Itoa(i)
		if !used[candidate] {
			return candidate
		}
	}
}
