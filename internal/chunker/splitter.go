package chunker

import "strings"

// defaultSeparators is the split priority for paragraph mode, highest first:
// paragraph break, line break, sentence-ending punctuation, clause
// punctuation, plain space, and finally character-level fallback.
var defaultSeparators = []string{"\n\n", "\n", ". ", ".\n", "! ", "? ", "; ", ": ", " ", ""}

// Splitter breaks text into pieces of approximately ChunkSize characters
// with ChunkOverlap characters carried between adjacent pieces of the same
// input. Separators are kept at the end of the piece they close, so
// trailing punctuation stays with the text it terminates.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int

	separators []string
}

// NewSplitter returns a splitter with the given target size and overlap.
// Non-positive size falls back to 1000; an overlap that is negative or not
// smaller than the size falls back to 100.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 100
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split breaks text into pieces. Whitespace-only pieces are dropped and
// every returned piece is trimmed. Any non-empty input yields at least one
// piece.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	pieces := s.split(text, s.separators)
	if len(pieces) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return pieces
}

// split recursively applies the separator priority list: the first
// separator present in the text partitions it; fragments still larger than
// ChunkSize are re-split with the remaining, lower-priority separators.
func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			sep = ""
			rest = nil
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	splits := splitKeepEnd(text, sep)

	var final []string
	var good []string
	for _, fragment := range splits {
		if fragment == "" {
			continue
		}
		if len(fragment) < s.ChunkSize {
			good = append(good, fragment)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			// Character-level fallback exhausted: emit the oversized
			// fragment in hard windows.
			final = append(final, s.hardSplit(fragment)...)
		} else {
			final = append(final, s.split(fragment, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge packs consecutive fragments into pieces of up to ChunkSize
// characters, carrying the trailing ChunkOverlap characters worth of
// fragments into the next piece.
func (s *Splitter) merge(fragments []string) []string {
	var pieces []string
	var window []string
	total := 0

	flush := func() {
		joined := strings.TrimSpace(strings.Join(window, ""))
		if joined != "" {
			pieces = append(pieces, joined)
		}
	}

	for _, fragment := range fragments {
		if total+len(fragment) > s.ChunkSize && len(window) > 0 {
			flush()
			// Shrink the window down to the overlap budget.
			for total > s.ChunkOverlap || (total+len(fragment) > s.ChunkSize && total > 0) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, fragment)
		total += len(fragment)
	}
	flush()
	return pieces
}

// hardSplit cuts an unsplittable fragment into ChunkSize windows on rune
// boundaries. Only reached when even single-character splitting produced a
// fragment at or above the target, i.e. pathological input.
func (s *Splitter) hardSplit(fragment string) []string {
	var pieces []string
	runes := []rune(fragment)
	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = s.ChunkSize
	}
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return pieces
}

// splitKeepEnd splits text on sep, keeping the separator at the end of the
// preceding fragment. The empty separator splits into individual runes.
func splitKeepEnd(text, sep string) []string {
	if sep == "" {
		runes := []rune(text)
		out := make([]string, len(runes))
		for i, r := range runes {
			out[i] = string(r)
		}
		return out
	}
	return strings.SplitAfter(text, sep)
}
