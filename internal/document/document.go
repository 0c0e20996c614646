package document

// Provenance locates a structural item within the source document.
// Page numbers are 0-indexed as delivered by the parser; the chunker
// converts to 1-indexed pages for addressing.
type Provenance struct {
	PageNo    int // 0-indexed source page
	CharStart int // character offset of the item's text on that page
	CharEnd   int
}

// StructuralItem is one content element of a parsed document (a paragraph,
// table cell, list entry, ...) in source order. Items may carry zero or more
// provenance records; absence of provenance is a declared case, not an error.
type StructuralItem struct {
	Text string
	Prov []Provenance
}

// Parsed is the structure-extraction result for one uploaded document.
type Parsed struct {
	Filename  string
	PageCount int
	Items     []StructuralItem
}

// Text returns the concatenated item text, used for content hashing.
func (p *Parsed) Text() string {
	var n int
	for _, it := range p.Items {
		n += len(it.Text) + 1
	}
	buf := make([]byte, 0, n)
	for _, it := range p.Items {
		if it.Text == "" {
			continue
		}
		if len(buf) > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, it.Text...)
	}
	return string(buf)
}
