package readers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// UniversalFileReader converts office and markup documents with docconv.
// The converted body is exposed as a single page. Conversion runs in process,
// without the external tidy tool.
type UniversalFileReader struct {
}

var converters = map[string]func(r io.Reader) (string, error){
	".docx": func(r io.Reader) (string, error) {
		body, _, err := docconv.ConvertDocx(r)
		return body, err
	},
	".odt": func(r io.Reader) (string, error) {
		body, _, err := docconv.ConvertODT(r)
		return body, err
	},
	".xml": func(r io.Reader) (string, error) {
		return docconv.XMLToText(r, []string{"br", "p"}, []string{}, false)
	},
	".html": htmlText,
	".htm":  htmlText,
}

func (r *UniversalFileReader) Exts() []string {
	return []string{".docx", ".odt", ".xml", ".html", ".htm"}
}

func (r *UniversalFileReader) Open(path string) (Document, error) {
	convert, ok := converters[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("unsupported document type: %s", filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	defer f.Close()

	body, err := convert(f)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}

	return &textDocument{text: body}, nil
}

var htmlBlocks = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// htmlText returns the visible text of an HTML page, with a line break after
// block elements.
func htmlText(r io.Reader) (string, error) {
	var b strings.Builder
	skip := 0

	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return strings.TrimSpace(b.String()), nil
			}
			return "", z.Err()

		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if tt == html.StartTagToken && (a == atom.Script || a == atom.Style) {
				skip++
			}
			if htmlBlocks[a] {
				b.WriteString("\n")
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
			if htmlBlocks[a] {
				b.WriteString("\n")
			}
		}
	}
}
