package chunker

import (
	"sort"
	"strconv"

	"github.com/dgallion1/veridoc/internal/document"
)

// piece is a sub-unit of a segment after granularity splitting. It inherits
// page and overlap from its parent segment unconditionally; segment records
// the parent's ordinal for hierarchical addressing.
type piece struct {
	text    string
	page    int
	overlap bool
	segment int
}

// address stable-sorts pieces by page (ties preserve extraction order) and
// assigns item numbers. The counter resets to 1 whenever the page changes
// and never resets mid-page. No pieces are merged or dropped: the output
// count equals the input count.
//
// With hierarchical numbering the item number is "major.minor", where major
// counts parent segments on the page and minor counts pieces within the
// segment. The plain counter is the default for both splitting modes; the
// hierarchical form exists for renderers that ask for two-level addresses.
func address(pieces []piece, hierarchical bool) []document.Chunk {
	sorted := make([]piece, len(pieces))
	copy(sorted, pieces)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].page < sorted[j].page
	})

	chunks := make([]document.Chunk, 0, len(sorted))
	currentPage := -1
	item := 0
	major, minor := 0, 0
	currentSegment := -1

	for _, p := range sorted {
		if p.page != currentPage {
			currentPage = p.page
			item = 1
			major, minor = 1, 1
			currentSegment = p.segment
		} else {
			item++
			if p.segment != currentSegment {
				currentSegment = p.segment
				major++
				minor = 1
			} else {
				minor++
			}
		}

		number := strconv.Itoa(item)
		if hierarchical {
			number = strconv.Itoa(major) + "." + strconv.Itoa(minor)
		}
		chunks = append(chunks, document.Chunk{
			PageNumber: p.page,
			ItemNumber: number,
			Text:       p.text,
			IsOverlap:  p.overlap,
		})
	}
	return chunks
}
