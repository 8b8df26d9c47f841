package tts

import "strings"

// Sentence-ending runes, covering both ASCII and CJK punctuation.
const sentenceEnders = ".!?;。！？；…"

// SplitSentences divides reply text into speakable sentences, keeping the
// trailing punctuation. Fragments shorter than minLength are merged into the
// following sentence so the synthesizer is not fed one-word slices.
func SplitSentences(text string, minLength int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var raw []string
	var b strings.Builder
	for _, r := range text {
		if r == '\n' || r == '\r' {
			if s := strings.TrimSpace(b.String()); s != "" {
				raw = append(raw, s)
			}
			b.Reset()
			continue
		}
		b.WriteRune(r)
		if strings.ContainsRune(sentenceEnders, r) {
			if s := strings.TrimSpace(b.String()); s != "" {
				raw = append(raw, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		raw = append(raw, s)
	}

	// Merge short fragments forward.
	var out []string
	carry := ""
	for _, s := range raw {
		if carry != "" {
			s = carry + " " + s
			carry = ""
		}
		if len([]rune(s)) < minLength {
			carry = s
			continue
		}
		out = append(out, s)
	}
	if carry != "" {
		if len(out) > 0 {
			out[len(out)-1] += " " + carry
		} else {
			out = append(out, carry)
		}
	}
	return out
}
