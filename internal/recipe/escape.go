package recipe

import "strings"

// markdownV2Reserved is the MarkdownV2 set that must be escaped in text.
const markdownV2Reserved = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 prefixes every reserved character with a backslash.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/8)
	for _, r := range text {
		if strings.ContainsRune(markdownV2Reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeLinkURL escapes the characters MarkdownV2 requires inside the (...)
// part of an inline link.
func EscapeLinkURL(url string) string {
	var b strings.Builder
	for _, r := range url {
		if r == ')' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
