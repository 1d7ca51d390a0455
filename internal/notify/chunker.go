package notify

import "strings"

// SplitAtLimit splits text into pieces no longer than limit characters,
// preferring to break at the last newline inside the window so lines are
// never cut mid-sentence. Short texts come back as a single piece.
func SplitAtLimit(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + limit
		if end >= len(text) {
			end = len(text)
		} else if text[end] != '\n' {
			if pos := strings.LastIndex(text[start:end], "\n"); pos > 0 {
				end = start + pos
			}
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end < len(text) && text[end] == '\n' {
			start = end + 1
		} else {
			start = end
		}
	}
	return chunks
}
