package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/veridoc/internal/document"
)

// Format is a supported export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Valid reports whether f is a known export format.
func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatJSON
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// Filename derives a timestamped export filename from the original upload
// name: contract.pdf -> contract_verification_20060102_150405.csv.
func Filename(original string, format Format, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	if base == "" {
		base = "document"
	}
	return fmt.Sprintf("%s_verification_%s.%s", base, now.Format("20060102_150405"), format)
}

var csvHeader = []string{"Page #", "Item #", "Text", "Verified ☑", "Verification Source", "Verification Note"}

// WriteCSV writes the verification table. Chunks never touched by a
// verification run render with an empty checkbox and blank source/note
// columns, matching the layout reviewers fill in by hand.
func WriteCSV(w io.Writer, chunks []document.Chunk) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range chunks {
		row := []string{
			fmt.Sprintf("%d", c.PageNumber),
			c.ItemNumber,
			c.Text,
			verifiedCell(c),
			stringOrEmpty(c.VerificationSource),
			noteCell(c),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonExport is the full-fidelity export envelope: every chunk field plus
// run-level counts.
type jsonExport struct {
	Document       string           `json:"document"`
	GeneratedAt    string           `json:"generated_at"`
	TotalChunks    int              `json:"total_chunks"`
	VerifiedChunks int              `json:"verified_chunks"`
	Chunks         []document.Chunk `json:"chunks"`
}

// WriteJSON writes the full verification state including citations, the
// format meant for programmatic consumers.
func WriteJSON(w io.Writer, chunks []document.Chunk, originalFilename string, now time.Time) error {
	verified := 0
	for _, c := range chunks {
		if c.Verified != nil && *c.Verified {
			verified++
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(jsonExport{
		Document:       originalFilename,
		GeneratedAt:    now.Format(time.RFC3339),
		TotalChunks:    len(chunks),
		VerifiedChunks: verified,
		Chunks:         chunks,
	})
}

func verifiedCell(c document.Chunk) string {
	if c.Verified != nil && *c.Verified {
		return "✅"
	}
	return "☐"
}

func noteCell(c document.Chunk) string {
	if c.VerificationNote == nil || *c.VerificationNote == "" {
		return ""
	}
	note := *c.VerificationNote
	if c.VerificationScore != nil && *c.VerificationScore > 0 {
		note += fmt.Sprintf(" (Confidence: %d/10)", *c.VerificationScore)
	}
	return note
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
