package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/veridoc/internal/document"
)

// Parser converts raw document bytes into a parsed structural-item list.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Parsed, error)
}

// Options selects the external-tool fallbacks available on this host.
type Options struct {
	// PDFFallbackPdftotext shells out to pdftotext when the Go PDF library
	// cannot extract text.
	PDFFallbackPdftotext bool
	// DOCXViaLibreOffice converts .docx to PDF with soffice first, which is
	// the only way to recover real page boundaries from a Word file.
	DOCXViaLibreOffice bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".html": true,
	".htm":  true,
	".pdf":  true,
	".docx": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{ViaLibreOffice: opts.DOCXViaLibreOffice, PDFFallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// itemOnPage builds a structural item pinned to a 0-indexed page. CharStart
// is the offset of the provenance fragment within the item's own text, so a
// whole item carries span [0, len).
func itemOnPage(text string, page int) document.StructuralItem {
	return document.StructuralItem{
		Text: text,
		Prov: []document.Provenance{{PageNo: page, CharStart: 0, CharEnd: len(text)}},
	}
}

// splitParagraphs breaks text on blank lines, preserving single newlines
// inside a paragraph.
func splitParagraphs(text string) []string {
	var paragraphs []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return paragraphs
}
