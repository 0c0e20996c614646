package chunker

import (
	"strings"
	"unicode"
)

// SentenceTokenizer detects sentence boundaries. The chunker treats the
// tokenizer as an external collaborator: each detected sentence becomes
// exactly one piece, with no merging and no size target.
type SentenceTokenizer interface {
	Sentences(text string) []string
}

// Tokenizer is the built-in rule-based sentence boundary detector. It
// splits on terminal punctuation (. ! ?) followed by whitespace, keeping
// the punctuation with the sentence it closes, and avoids false boundaries
// after common abbreviations, single-letter initials and decimal numbers.
//
// Boundary behaviour on semicolon-dense legal clauses is deliberately
// conservative: semicolons never end a sentence.
type Tokenizer struct {
	abbreviations map[string]struct{}
}

// abbreviations that commonly precede a period mid-sentence in legal and
// business documents.
var defaultAbbreviations = []string{
	"mr", "mrs", "ms", "dr", "prof", "hon", "rev", "st",
	"jr", "sr", "esq",
	"inc", "ltd", "llc", "llp", "co", "corp", "plc",
	"no", "nos", "art", "arts", "sec", "secs", "para", "paras",
	"cl", "cls", "ch", "pt", "fig", "vol", "ed", "p", "pp",
	"v", "vs", "etc", "e.g", "i.e", "cf", "viz", "al",
	"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep",
	"sept", "oct", "nov", "dec",
	"u.s", "u.k", "e.u",
}

// NewTokenizer returns a tokenizer with the default abbreviation set.
func NewTokenizer() *Tokenizer {
	abbr := make(map[string]struct{}, len(defaultAbbreviations))
	for _, a := range defaultAbbreviations {
		abbr[a] = struct{}{}
	}
	return &Tokenizer{abbreviations: abbr}
}

// Sentences splits text into sentences. Sentences are trimmed; empty
// results are dropped. Non-empty input yields at least one sentence.
func (t *Tokenizer) Sentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	emit := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		// Swallow runs of terminal punctuation ("?!", "...").
		end := i
		for end+1 < len(runes) && isTerminal(runes[end+1]) {
			end++
		}
		// Closing quotes and brackets belong to the sentence they end.
		for end+1 < len(runes) && isClosing(runes[end+1]) {
			end++
		}

		if end+1 < len(runes) && !unicode.IsSpace(runes[end+1]) {
			// Mid-token punctuation: decimals, section numbers, URLs.
			i = end
			continue
		}
		if r == '.' && t.isAbbreviation(runes[start:i]) {
			i = end
			continue
		}

		emit(end + 1)
		i = end
	}

	if start < len(runes) {
		emit(len(runes))
	}
	if len(sentences) == 0 && strings.TrimSpace(text) != "" {
		sentences = append(sentences, strings.TrimSpace(text))
	}
	return sentences
}

// isAbbreviation reports whether the word ending just before a period is a
// known abbreviation or a single-letter initial, meaning the period does
// not end a sentence.
func (t *Tokenizer) isAbbreviation(before []rune) bool {
	// Walk back to the start of the final word.
	end := len(before)
	i := end
	for i > 0 && !unicode.IsSpace(before[i-1]) && before[i-1] != '(' && before[i-1] != '"' {
		i--
	}
	word := strings.ToLower(strings.Trim(string(before[i:end]), "."))
	if word == "" {
		return false
	}
	// Single-letter initials: "J. Smith", enumerations "a.", "b.".
	if len([]rune(word)) == 1 && unicode.IsLetter([]rune(word)[0]) {
		return true
	}
	_, ok := t.abbreviations[word]
	return ok
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}
