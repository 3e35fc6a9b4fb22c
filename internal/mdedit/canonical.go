package mdedit

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Canonicalize returns the matching form of a heading title: inline markup
// and code spans removed, NFKC normalised, case folded, emoji dropped,
// whitespace collapsed and leading or trailing punctuation stripped.
func Canonicalize(title string) string {
	s := headingPlainText(title)
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)

	var sb strings.Builder
	space := false
	for _, r := range s {
		if isEmojiRune(r) {
			continue
		}
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = false
		sb.WriteRune(r)
	}

	return strings.TrimFunc(sb.String(), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
	})
}

// CanonicalizePath canonicalizes every segment of a heading path.
func CanonicalizePath(path []string) []string {
	out := make([]string, len(path))
	for i, p := range path {
		out[i] = Canonicalize(p)
	}
	return out
}

// isEmojiRune reports whether r belongs to the pictographic emoji ranges or
// is one of the joiners and modifiers used to compose emoji sequences.
func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // pictographs, emoticons, transport, flags, skin tones
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	case r >= 0x2B00 && r <= 0x2BFF: // arrows and stars such as ⭐ ⬆
		return true
	case r >= 0x2300 && r <= 0x23FF: // ⌚ ⏰ ⏩
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	case r >= 0xE0020 && r <= 0xE007F: // tag sequences
		return true
	case r == 0x200D, r == 0x20E3, r == 0x3030, r == 0x303D, r == 0x3297, r == 0x3299:
		return true
	}
	return false
}
