package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/veridoc/internal/document"
)

// TextParser handles plain text files. Plain text has no page structure,
// so everything lands on page 1.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Parsed, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	parsed := &document.Parsed{
		Filename:  filename,
		PageCount: 1,
	}
	for _, para := range paragraphs {
		parsed.Items = append(parsed.Items, itemOnPage(para, 0))
	}
	return parsed, nil
}
