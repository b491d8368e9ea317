// Package pdftest builds small uncompressed PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

type Bookmark struct {
	Title string
	// Page is the 1-based destination page, 0 for none.
	Page int
	// GoTo writes the destination as a GoTo action instead of /Dest.
	GoTo     bool
	Children []Bookmark
}

type Doc struct {
	// Pages holds the text of each page, lines separated by "\n".
	Pages []string
	// Info entries are written to the trailer Info dictionary, e.g. "Title".
	Info    map[string]string
	Outline []Bookmark
}

// Write stores doc as a PDF file at root/name and returns the full path.
func Write(t testing.TB, root, name string, doc Doc) string {
	t.Helper()

	path := filepath.Join(root, name)
	if err := os.WriteFile(path, Bytes(doc), 0o644); err != nil {
		t.Fatalf("failed to write pdf fixture: %s", err)
	}

	return path
}

func Bytes(doc Doc) []byte {
	n := len(doc.Pages)
	infoID := 4 + 2*n
	outlineID := infoID + 1

	objs := make(map[int]string)

	catalog := "<< /Type /Catalog /Pages 2 0 R"
	if len(doc.Outline) > 0 {
		catalog += fmt.Sprintf(" /Outlines %d 0 R", outlineID)
	}
	objs[1] = catalog + " >>"

	kids := make([]string, 0, n)
	for i := range n {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	objs[2] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n)
	objs[3] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

	for i, text := range doc.Pages {
		pageID := 4 + 2*i
		contentID := pageID + 1
		objs[pageID] = fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			contentID)

		stream := contentStream(text)
		objs[contentID] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream)
	}

	keys := make([]string, 0, len(doc.Info))
	for k := range doc.Info {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var info strings.Builder
	info.WriteString("<<")
	for _, k := range keys {
		fmt.Fprintf(&info, " /%s (%s)", k, escape(doc.Info[k]))
	}
	info.WriteString(" >>")
	objs[infoID] = info.String()

	size := outlineID
	if len(doc.Outline) > 0 {
		size = writeOutline(objs, outlineID, doc.Outline)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, size)
	for id := 1; id < size; id++ {
		offsets[id] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", id, objs[id])
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", size)
	for id := 1; id < size; id++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[id])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, infoID, xref)

	return buf.Bytes()
}

// Corrupt returns bytes that start like a PDF but cannot be parsed.
func Corrupt() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog\nendobj\ntrailer\n<<>>\n%%EOF\n")
}

func contentStream(text string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n14 TL\n72 720 Td\n")
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(&b, "(%s) Tj\nT*\n", escape(line))
	}
	b.WriteString("ET")

	return b.String()
}

// writeOutline lays out the outline root at id followed by its items and
// returns the next free object id.
func writeOutline(objs map[int]string, id int, items []Bookmark) int {
	next := id + 1
	first, last, next := writeItems(objs, id, items, next)
	objs[id] = fmt.Sprintf("<< /Type /Outlines /First %d 0 R /Last %d 0 R /Count %d >>", first, last, len(items))

	return next
}

func writeItems(objs map[int]string, parent int, items []Bookmark, next int) (int, int, int) {
	ids := make([]int, len(items))
	for i := range items {
		ids[i] = next
		next++
	}

	for i, item := range items {
		entry := fmt.Sprintf("<< /Title (%s) /Parent %d 0 R", escape(item.Title), parent)
		if item.Page > 0 {
			dest := fmt.Sprintf("[%d 0 R /Fit]", 4+2*(item.Page-1))
			if item.GoTo {
				entry += fmt.Sprintf(" /A << /S /GoTo /D %s >>", dest)
			} else {
				entry += " /Dest " + dest
			}
		}
		if i > 0 {
			entry += fmt.Sprintf(" /Prev %d 0 R", ids[i-1])
		}
		if i < len(items)-1 {
			entry += fmt.Sprintf(" /Next %d 0 R", ids[i+1])
		}

		if len(item.Children) > 0 {
			var first, last int
			first, last, next = writeItems(objs, ids[i], item.Children, next)
			entry += fmt.Sprintf(" /First %d 0 R /Last %d 0 R /Count %d", first, last, len(item.Children))
		}

		objs[ids[i]] = entry + " >>"
	}

	return ids[0], ids[len(ids)-1], next
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
