package channels

import (
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// SplitMessage breaks content into chunks whose display width (East-Asian
// wide runes count double, matching how Telegram/Discord count toward their
// length caps) never exceeds maxWidth. Cut points prefer the last newline in
// the window, then the last space, so words are never broken unless a
// single chunk has no whitespace at all.
func SplitMessage(content string, maxWidth int) []string {
	if maxWidth <= 0 || content == "" {
		return []string{content}
	}
	var chunks []string
	for content != "" {
		if runewidth.StringWidth(content) <= maxWidth {
			chunks = append(chunks, content)
			break
		}
		cut := splitCut(content, maxWidth)
		chunks = append(chunks, content[:cut])
		content = content[cut:]
	}
	return chunks
}

// splitCut returns the byte offset to cut s at, preferring the last newline
// or space seen before the rune that would push the running width over
// maxWidth. Falls back to a hard cut at that rune's boundary.
func splitCut(s string, maxWidth int) int {
	width := 0
	lastNewline := -1
	lastSpace := -1
	hardCut := len(s)
	for i, r := range s {
		w := runewidth.RuneWidth(r)
		if width+w > maxWidth {
			hardCut = i
			break
		}
		width += w
		switch r {
		case '\n':
			lastNewline = i + 1
		case ' ':
			lastSpace = i + 1
		}
	}
	switch {
	case lastNewline > 0:
		return lastNewline
	case lastSpace > 0:
		return lastSpace
	case hardCut == 0:
		_, size := utf8.DecodeRuneInString(s)
		return size
	default:
		return hardCut
	}
}
