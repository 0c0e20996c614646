package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/veridoc/internal/document"
)

// DOCXParser handles .docx files. A Word file carries no page boundaries;
// when ViaLibreOffice is enabled the file is converted to PDF with soffice
// and parsed from there, recovering real pagination. Otherwise the native
// reader flattens paragraphs onto a single page.
type DOCXParser struct {
	ViaLibreOffice       bool
	PDFFallbackPdftotext bool
}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*document.Parsed, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "veridoc-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	if p.ViaLibreOffice {
		parsed, err := p.parseViaPDF(tmpPath, filename)
		if err == nil {
			return parsed, nil
		}
		// Conversion failure degrades to the native single-page path.
	}
	return parseDOCXNative(tmpPath, filename, size)
}

// parseViaPDF converts the docx to PDF with LibreOffice and parses the
// result, page boundaries included.
func (p *DOCXParser) parseViaPDF(docxPath, filename string) (*document.Parsed, error) {
	outDir, err := os.MkdirTemp("", "veridoc-soffice-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	cmd := exec.Command("soffice", "--headless", "--convert-to", "pdf", "--outdir", outDir, docxPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("soffice convert: %w: %s", err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(docxPath), ".docx")
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("soffice output missing: %w", err)
	}

	parsed, err := parsePDFFile(pdfPath, filename, p.PDFFallbackPdftotext)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

// parseDOCXNative reads paragraphs straight out of the docx body. No page
// information survives this path; everything lands on page 1.
func parseDOCXNative(path, filename string, size int64) (*document.Parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}
	defer f.Close()

	doc, err := docx.Parse(f, size)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	parsed := &document.Parsed{
		Filename:  filename,
		PageCount: 1,
	}
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		parsed.Items = append(parsed.Items, itemOnPage(text, 0))
	}
	return parsed, nil
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
