package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/veridoc/internal/document"
)

// PDFParser handles PDF files. It tries the Go library first, then falls
// back to pdftotext if enabled. Each page's paragraphs become structural
// items pinned to that page, which is what drives per-page item numbering
// downstream.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*document.Parsed, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "veridoc-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	return parsePDFFile(tmpPath, filename, p.FallbackPdftotext)
}

func parsePDFFile(path, filename string, fallbackPdftotext bool) (*document.Parsed, error) {
	pages, err := extractPDFPages(path)
	if err != nil && fallbackPdftotext {
		pages, err = extractPdftotextPages(path)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	parsed := &document.Parsed{
		Filename:  filename,
		PageCount: len(pages),
	}
	for pageNo, pageText := range pages {
		for _, para := range splitParagraphs(pageText) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			parsed.Items = append(parsed.Items, itemOnPage(para, pageNo))
		}
	}
	return parsed, nil
}

// extractPDFPages pulls per-page plain text with the Go library. Pages the
// library cannot decode come back empty instead of failing the document.
func extractPDFPages(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// extractPdftotextPages shells out to pdftotext, which separates pages
// with form feeds.
func extractPdftotextPages(path string) ([]string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return strings.Split(string(out), "\f"), nil
}
