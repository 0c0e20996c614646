package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/veridoc/internal/document"
)

// MarkdownParser handles Markdown files using goldmark. Headings and block
// elements each become one structural item, in source order.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Parsed, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	parsed := &document.Parsed{
		Filename:  filename,
		PageCount: 1,
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		var t string
		switch node := n.(type) {
		case *ast.Heading:
			t = string(node.Text(src))
		default:
			t = extractText(n, src)
		}
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		parsed.Items = append(parsed.Items, itemOnPage(t, 0))
	}
	return parsed, nil
}

// extractText gets the text content of a goldmark AST node. Leaf blocks
// carry their raw source lines; container blocks (lists, quotes) recurse.
func extractText(n ast.Node, src []byte) string {
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := extractText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
