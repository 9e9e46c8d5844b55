package telegram

import "strings"

var (
	markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")
	linkURLEscaper  = strings.NewReplacer(")", "%29", " ", "%20")
)

// EscapeMarkdown escapes the characters legacy Markdown treats as entity
// delimiters so user text renders literally.
func EscapeMarkdown(s string) string { return markdownEscaper.Replace(s) }

// EscapeLinkURL percent-encodes the characters that would end an inline
// link target early.
func EscapeLinkURL(u string) string { return linkURLEscaper.Replace(u) }
