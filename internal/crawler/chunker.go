package crawler

import (
	"strings"
	"unicode/utf8"
)

// Chunking parameters. Chunks target ChunkSize characters with ChunkOverlap
// characters repeated from the previous chunk so retrieval does not lose
// context at cut points.
const (
	ChunkSize    = 1000
	ChunkOverlap = 200
)

// boundarySeparators in priority order: paragraph, line, sentence, word.
// A chunk is cut at the highest-priority boundary found in the back half of
// the window; with no boundary at all it is cut mid-word.
var boundarySeparators = []string{"\n\n", "\n", ". ", " "}

// SplitText splits text into overlapping chunks of at most size characters.
// Cut points prefer paragraph over line over sentence over word boundaries.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = ChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = ChunkOverlap
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = cutPoint(text, start, end)
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(text) {
			break
		}

		next := alignRuneStart(text, end-overlap)
		if next <= start {
			// Overlap must never stall the walk.
			_, width := utf8.DecodeRuneInString(text[start:])
			next = start + width
		}
		start = next
	}

	return chunks
}

// cutPoint finds where to end the chunk starting at start with hard limit
// end. Boundaries are searched in priority order within the back half of the
// window so chunks stay reasonably sized.
func cutPoint(text string, start, end int) int {
	window := text[start:end]
	minCut := len(window) / 2

	for _, sep := range boundarySeparators {
		if idx := strings.LastIndex(window, sep); idx >= minCut {
			return start + idx + len(sep)
		}
	}
	// No usable boundary; hard-cut at the limit, never inside a rune.
	return alignRuneStart(text, end)
}

// alignRuneStart moves i back to the start of the rune containing it, so
// byte-offset cuts never split a multi-byte character.
func alignRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// CollapseWhitespace normalizes runs of whitespace while keeping paragraph
// breaks, which the chunker uses as its preferred boundary.
func CollapseWhitespace(text string) string {
	paragraphs := strings.Split(text, "\n\n")
	out := paragraphs[:0]
	for _, p := range paragraphs {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
