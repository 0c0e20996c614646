package document

// Mode selects the granularity of the splitting stage.
type Mode string

const (
	ModeParagraph Mode = "paragraph"
	ModeSentence  Mode = "sentence"
)

// Valid reports whether m is a known splitting mode.
func (m Mode) Valid() bool {
	return m == ModeParagraph || m == ModeSentence
}

// Citation is one piece of grounding evidence behind a verification verdict.
type Citation struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	URI     string `json:"uri,omitempty"`
}

// Chunk is an addressable unit of document text. ItemNumber restarts at "1"
// on every page change in the page-sorted sequence.
//
// The verification fields are nil until a verification run has touched the
// chunk. Once an attempt has been made (success or failure) Citations is
// always non-nil; an empty slice means "no grounding evidence found".
type Chunk struct {
	PageNumber int    `json:"page_number"`
	ItemNumber string `json:"item_number"`
	Text       string `json:"text"`
	IsOverlap  bool   `json:"is_overlap"`

	Verified           *bool      `json:"verified"`
	VerificationScore  *int       `json:"verification_score"`
	VerificationSource *string    `json:"verification_source"`
	VerificationNote   *string    `json:"verification_note"`
	Citations          []Citation `json:"citations"`
}

// ResetVerification nulls every verification field, returning the chunk to
// its pre-verification state. Page, item, text and overlap are untouched.
func (c *Chunk) ResetVerification() {
	c.Verified = nil
	c.VerificationScore = nil
	c.VerificationSource = nil
	c.VerificationNote = nil
	c.Citations = nil
}

// SetVerification writes a complete verification outcome onto the chunk.
// Citations may be nil; it is normalised to an empty slice so a rendered
// chunk can always distinguish "attempted" from "not yet processed".
func (c *Chunk) SetVerification(verified bool, score int, source, note string, citations []Citation) {
	if citations == nil {
		citations = []Citation{}
	}
	c.Verified = &verified
	c.VerificationScore = &score
	c.VerificationSource = &source
	c.VerificationNote = &note
	c.Citations = citations
}
