package tts

import "regexp"

// normalizeTextForTTS strips formatting that reads badly when spoken aloud:
// markdown markers, emojis, and runs of whitespace.
func normalizeTextForTTS(text string) string {
	text = markdownRegex.ReplaceAllString(text, "")
	text = removeEmojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return trimWhitespaceRegex.ReplaceAllString(text, "")
}

var (
	markdownRegex       = regexp.MustCompile("\\*\\*|\\*|__|~~|`|^#+\\s*")
	removeEmojiRegex    = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
	trimWhitespaceRegex = regexp.MustCompile(`^\s+|\s+$`)
)
