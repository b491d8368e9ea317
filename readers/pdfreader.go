package readers

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// PdfFileReader extracts PDF text page by page.
type PdfFileReader struct {
}

func (r *PdfFileReader) Exts() []string {
	return []string{".pdf"}
}

func (r *PdfFileReader) Open(path string) (Document, error) {
	f, reader, err := openPdf(path)
	if err != nil {
		return nil, err
	}

	pages, err := numPages(reader)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &pdfDocument{
		file:   f,
		reader: reader,
		pages:  pages,
		fonts:  make(map[string]*pdf.Font),
	}, nil
}

func (r *PdfFileReader) ReadMetadata(path string) (meta Metadata, err error) {
	f, reader, err := openPdf(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to read pdf metadata: %v", rec)
		}
	}()

	meta.PageCount = reader.NumPage()

	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		meta.Title = info.Key("Title").Text()
		meta.Author = info.Key("Author").Text()
		meta.Subject = info.Key("Subject").Text()
		meta.Creator = info.Key("Creator").Text()
		meta.Producer = info.Key("Producer").Text()

		if t, ok := ParseDate(info.Key("CreationDate").Text()); ok {
			meta.CreationDate = &t
		}
		if t, ok := ParseDate(info.Key("ModDate").Text()); ok {
			meta.ModificationDate = &t
		}
	}

	meta.HasBookmarks = len(reader.Outline().Child) > 0

	return meta, nil
}

func (r *PdfFileReader) ReadOutline(path string) (items []OutlineItem, err error) {
	f, reader, err := openPdf(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to read pdf outline: %v", rec)
		}
	}()

	ol := newOutlineReader(reader)
	items = ol.items(reader.Trailer().Key("Root").Key("Outlines"), 1)
	setPageEnds(items, reader.NumPage())

	return items, nil
}

// maxOutlineItems bounds the walk over malformed outlines whose sibling
// links form a cycle.
const maxOutlineItems = 10000

type outlineReader struct {
	root  pdf.Value
	pages map[string]int
	seen  int
}

func newOutlineReader(reader *pdf.Reader) *outlineReader {
	n := reader.NumPage()
	pages := make(map[string]int, n)
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		if _, ok := pages[p.V.String()]; !ok {
			pages[p.V.String()] = i
		}
	}

	return &outlineReader{
		root:  reader.Trailer().Key("Root"),
		pages: pages,
	}
}

func (o *outlineReader) items(parent pdf.Value, level int) []OutlineItem {
	items := []OutlineItem{}
	for e := parent.Key("First"); e.Kind() == pdf.Dict && o.seen < maxOutlineItems; e = e.Key("Next") {
		o.seen++
		items = append(items, OutlineItem{
			Title:     e.Key("Title").Text(),
			Level:     level,
			PageStart: o.destPage(e),
			Children:  o.items(e, level+1),
		})
	}

	return items
}

// destPage returns the 1-based page a bookmark points to, or 0.
func (o *outlineReader) destPage(e pdf.Value) int {
	dest := e.Key("Dest")
	if dest.IsNull() {
		if a := e.Key("A"); a.Key("S").Name() == "GoTo" {
			dest = a.Key("D")
		}
	}

	switch dest.Kind() {
	case pdf.Name:
		dest = o.root.Key("Dests").Key(dest.Name())
	case pdf.String:
		dest = lookupName(o.root.Key("Names").Key("Dests"), dest.RawString(), 0)
	}
	if dest.Kind() == pdf.Dict {
		dest = dest.Key("D")
	}
	if dest.Kind() != pdf.Array || dest.Len() == 0 {
		return 0
	}

	target := dest.Index(0)
	switch target.Kind() {
	case pdf.Dict:
		return o.pages[target.String()]
	case pdf.Integer:
		return int(target.Int64()) + 1
	}

	return 0
}

// lookupName finds key in a name tree.
func lookupName(node pdf.Value, key string, depth int) pdf.Value {
	if node.Kind() != pdf.Dict || depth > 32 {
		return pdf.Value{}
	}

	names := node.Key("Names")
	for i := 0; i+1 < names.Len(); i += 2 {
		if names.Index(i).RawString() == key {
			return names.Index(i + 1)
		}
	}

	kids := node.Key("Kids")
	for i := 0; i < kids.Len(); i++ {
		if v := lookupName(kids.Index(i), key, depth+1); !v.IsNull() {
			return v
		}
	}

	return pdf.Value{}
}

// setPageEnds closes each bookmark where its next sibling starts, and the
// last sibling where its parent ends.
func setPageEnds(items []OutlineItem, last int) {
	for i := range items {
		item := &items[i]
		if item.PageStart == 0 {
			setPageEnds(item.Children, last)
			continue
		}

		end := last
		for _, next := range items[i+1:] {
			if next.PageStart > 0 {
				end = min(last, next.PageStart-1)
				break
			}
		}
		item.PageEnd = max(item.PageStart, end)

		setPageEnds(item.Children, item.PageEnd)
	}
}

// openPdf turns parser panics on malformed input into errors.
func openPdf(path string) (f *os.File, reader *pdf.Reader, err error) {
	f, err = os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read pdf document: %w", err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			f.Close()
			f, reader, err = nil, nil, fmt.Errorf("failed to parse pdf document: %v", rec)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to read pdf document: %w", err)
	}

	reader, err = pdf.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to read pdf document: %w", err)
	}

	return f, reader, nil
}

func numPages(reader *pdf.Reader) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to count pdf pages: %v", rec)
		}
	}()

	return reader.NumPage(), nil
}

type pdfDocument struct {
	file   *os.File
	reader *pdf.Reader
	pages  int
	fonts  map[string]*pdf.Font
}

func (d *pdfDocument) NumPages() int {
	return d.pages
}

func (d *pdfDocument) PageText(n int) (text string, err error) {
	if n < 1 || n > d.pages {
		return "", fmt.Errorf("page %d out of range [1, %d]", n, d.pages)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to extract page %d: %v", n, rec)
		}
	}()

	p := d.reader.Page(n)
	if p.V.IsNull() {
		return "", nil
	}

	// fonts are shared between pages so charmaps are parsed once
	for _, name := range p.Fonts() {
		if _, ok := d.fonts[name]; !ok {
			font := p.Font(name)
			d.fonts[name] = &font
		}
	}

	text, err = p.GetPlainText(d.fonts)
	if err != nil {
		return "", fmt.Errorf("failed to extract page %d: %w", n, err)
	}

	return text, nil
}

func (d *pdfDocument) Close() error {
	return d.file.Close()
}
