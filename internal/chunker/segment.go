package chunker

import (
	"strings"

	"github.com/dgallion1/veridoc/internal/document"
)

// Segment is one raw, page-addressed unit of text taken from a structural
// item, before any granularity splitting.
type Segment struct {
	Text       string
	PageNumber int // 1-indexed
	IsOverlap  bool
}

// Extract walks the parsed document's items in source order and emits one
// segment per item with non-empty text. The page number comes from the
// item's first provenance record (0-indexed page + 1); an item without
// provenance defaults to page 1.
//
// IsOverlap flags likely continuations from a previous page: either the
// item's provenance spans multiple records, or its first character span
// starts past offset 0. The heuristic can misfire on items whose first
// fragment simply doesn't begin at character 0; it is carried through as-is
// rather than corrected here.
//
// Each item is evaluated independently — a malformed item degrades to
// page 1 / no overlap instead of aborting the rest of the extraction.
// Items are not re-sorted; addressing happens later.
func Extract(doc *document.Parsed) []Segment {
	if doc == nil {
		return nil
	}

	segments := make([]Segment, 0, len(doc.Items))
	for _, item := range doc.Items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}

		page := 1
		overlap := false
		if len(item.Prov) > 0 {
			if p := item.Prov[0].PageNo; p >= 0 {
				page = p + 1
			}
			overlap = len(item.Prov) > 1 || item.Prov[0].CharStart > 0
		}

		segments = append(segments, Segment{
			Text:       text,
			PageNumber: page,
			IsOverlap:  overlap,
		})
	}
	return segments
}
