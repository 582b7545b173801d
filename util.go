package hashcol

import (
	"slices"
	"strings"
	"unicode"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func sortedUnique(items []string) []string {
	slices.Sort(items)
	return slices.Compact(items)
}

// dasherize turns "BlogPost" or "blog_post" into "blog-post".
func dasherize(s string) string {
	var buf strings.Builder
	prevLower := false
	for _, r := range s {
		switch {
		case r == '_' || r == ' ':
			buf.WriteByte('-')
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				buf.WriteByte('-')
			}
			buf.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			buf.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return buf.String()
}
