package syncer

import (
	"strings"
	"unicode"
)

// Sanitize prepares a name for a terminal label. It keeps Latin letters
// (accented ones too), digits and single spaces, then truncates to max
// runes. A non-positive max disables truncation.
func Sanitize(name string, max int) string {
	var b strings.Builder
	space := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case unicode.Is(unicode.Latin, r), '0' <= r && r <= '9':
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}

	out := []rune(b.String())
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return strings.TrimRight(string(out), " ")
}
