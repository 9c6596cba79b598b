package quiz

import "unicode"

// tidyAnswer collapses runs of whitespace into one space and trims both ends.
// Case and punctuation are kept: the backend grades the text.
func tidyAnswer(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && len(out) > 0 {
			out = append(out, ' ')
		}
		space = false
		out = append(out, r)
	}
	return string(out)
}
