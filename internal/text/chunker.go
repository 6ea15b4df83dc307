package text

import (
	"errors"
	"strings"
)

// ErrChunkConfig is returned when the window parameters could not make
// progress (overlap not smaller than the chunk size).
var ErrChunkConfig = errors.New("chunk overlap must be smaller than chunk size")

// Normalize strips formatting noise from extracted document text: each line
// is trimmed of surrounding whitespace, blank lines are dropped, and the
// remaining lines are rejoined with single newlines. Hashing and chunking
// always operate on normalized text.
func Normalize(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Chunk splits text into overlapping character windows. Positions are
// measured in runes, not bytes, so a boundary never lands inside a
// multi-byte character. Each chunk spans [start, start+size) clipped to the
// text length; the next window starts at start+size-overlap. Empty input
// yields an empty slice; text shorter than size yields exactly one chunk.
func Chunk(text string, size, overlap int) ([]string, error) {
	if overlap >= size {
		return nil, ErrChunkConfig
	}
	if overlap < 0 {
		return nil, ErrChunkConfig
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		// A window that reached the end covers the rest of the text; a
		// further window would only repeat its tail.
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
