package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/veridoc/internal/document"
)

// ErrUnknownMode is returned for a splitting mode the chunker does not
// implement. It is the only chunking failure that aborts a request.
var ErrUnknownMode = errors.New("unknown splitting mode")

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int  // paragraph-mode target size in characters
	ChunkOverlap int  // overlap between adjacent paragraph-mode pieces
	Hierarchical bool // "major.minor" item numbers instead of a plain counter
}

// DefaultConfig returns the stock settings: 1000-character pieces with a
// 100-character overlap and plain per-page counters.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 100,
	}
}

// Chunker turns a parsed document into addressed chunks. Construct once and
// share; it holds no per-document state.
type Chunker struct {
	splitter     *Splitter
	tokenizer    SentenceTokenizer
	hierarchical bool
}

// New creates a Chunker. A nil tokenizer selects the built-in sentence
// boundary detector.
func New(cfg Config, tokenizer SentenceTokenizer) *Chunker {
	if tokenizer == nil {
		tokenizer = NewTokenizer()
	}
	return &Chunker{
		splitter:     NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		tokenizer:    tokenizer,
		hierarchical: cfg.Hierarchical,
	}
}

// ChunkDocument runs the full pipeline: segment extraction, mode-specific
// splitting, then page-sorted item addressing. The same document and mode
// always yield the same ordered chunk list.
func (c *Chunker) ChunkDocument(doc *document.Parsed, mode document.Mode) ([]document.Chunk, error) {
	segments := Extract(doc)

	var pieces []piece
	switch mode {
	case document.ModeParagraph:
		pieces = c.splitParagraphs(segments)
	case document.ModeSentence:
		pieces = c.splitSentences(segments)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	return address(pieces, c.hierarchical), nil
}

// splitParagraphs re-splits each segment with the recursive separator
// splitter. Page and overlap metadata are inherited from the parent
// segment; every non-empty segment contributes at least one piece.
func (c *Chunker) splitParagraphs(segments []Segment) []piece {
	var pieces []piece
	for i, seg := range segments {
		parts := c.splitter.Split(seg.Text)
		if len(parts) == 0 {
			parts = []string{seg.Text}
		}
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			pieces = append(pieces, piece{
				text:    part,
				page:    seg.PageNumber,
				overlap: seg.IsOverlap,
				segment: i,
			})
		}
	}
	return pieces
}

// splitSentences delegates boundary detection to the tokenizer; each
// detected sentence becomes exactly one piece.
func (c *Chunker) splitSentences(segments []Segment) []piece {
	var pieces []piece
	for i, seg := range segments {
		sentences := c.tokenizer.Sentences(seg.Text)
		if len(sentences) == 0 {
			sentences = []string{seg.Text}
		}
		for _, sentence := range sentences {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			pieces = append(pieces, piece{
				text:    sentence,
				page:    seg.PageNumber,
				overlap: seg.IsOverlap,
				segment: i,
			})
		}
	}
	return pieces
}
