package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gamma-omg/pyramid-mcp/internal/pdftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ReadContent_AllPages(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	writePdf(t, lib.Root(), "doc.pdf", "alpha", "beta", "gamma")

	c, err := lib.ReadContent(context.Background(), "doc.pdf", PageRange{}, "")
	require.NoError(t, err)

	assert.Equal(t, "doc.pdf", c.Name)
	assert.Equal(t, 3, c.PageCount)
	assert.Equal(t, "1-3", c.PageRange)
	assert.False(t, c.Truncated)
	assert.Equal(t, len(c.Text), c.TextLength)
	require.Len(t, c.Pages, 3)

	for i, word := range []string{"alpha", "beta", "gamma"} {
		assert.Equal(t, i+1, c.Pages[i].Number)
		assert.Contains(t, c.Pages[i].Text, word)
		assert.Contains(t, c.Text, word)
	}

	assert.Less(t, strings.Index(c.Text, "--- Page 1 ---"), strings.Index(c.Text, "--- Page 2 ---"))
	assert.Less(t, strings.Index(c.Text, "--- Page 2 ---"), strings.Index(c.Text, "--- Page 3 ---"))
}

func Test_ReadContent_PageRange(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	path := writePdf(t, lib.Root(), "doc.pdf", "alpha", "beta", "gamma")

	c, err := lib.ReadContent(context.Background(), path, PageRange{Start: 2, End: 2}, "")
	require.NoError(t, err)

	assert.Equal(t, "2", c.PageRange)
	assert.Equal(t, 3, c.PageCount)
	require.Len(t, c.Pages, 1)
	assert.Contains(t, c.Text, "beta")
	assert.NotContains(t, c.Text, "alpha")
	assert.NotContains(t, c.Text, "gamma")

	c, err = lib.ReadContent(context.Background(), "doc.pdf", PageRange{Start: 2, End: 3}, "")
	require.NoError(t, err)
	require.Len(t, c.Pages, 2)
	assert.Contains(t, c.Text, "gamma")
}

func Test_ReadContent_InvalidPageRange(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	writePdf(t, lib.Root(), "doc.pdf", "alpha", "beta", "gamma")

	for _, r := range []PageRange{
		{Start: 4, End: 5},
		{Start: 2, End: 9},
		{Start: 3, End: 1},
		{Start: 7},
	} {
		_, err := lib.ReadContent(context.Background(), "doc.pdf", r, "")
		assert.ErrorIs(t, err, ErrInvalidPageRange, r.String())
	}
}

func Test_ReadContent_FileNotFound(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	root := lib.Root()
	writePdf(t, root, "doc.pdf", "alpha")
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir.pdf"), 0o755))

	outside := t.TempDir()
	outsidePath := writePdf(t, outside, "outside.pdf", "secret")

	for _, path := range []string{
		"",
		"missing.pdf",
		"dir.pdf",
		"../doc.pdf",
		filepath.Join("..", filepath.Base(outside), "outside.pdf"),
		outsidePath,
		root,
	} {
		_, err := lib.ReadContent(context.Background(), path, PageRange{}, "")
		assert.ErrorIs(t, err, ErrFileNotFound, path)
	}
}

func Test_ReadContent_Symlinks(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	root := lib.Root()
	writePdf(t, root, "doc.pdf", "alpha")

	outside := t.TempDir()
	secret := writeFile(t, outside, "secret.txt", "TOP SECRET")

	require.NoError(t, os.Symlink(secret, filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "sub")))
	require.NoError(t, os.Symlink(filepath.Join(root, "doc.pdf"), filepath.Join(root, "alias.pdf")))

	files, err := lib.ListFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "doc.pdf", files[0].Name)

	for _, path := range []string{
		"link.txt",
		filepath.Join(root, "link.txt"),
		filepath.Join("sub", "secret.txt"),
		"alias.pdf",
	} {
		c, err := lib.ReadContent(context.Background(), path, PageRange{}, "")
		assert.ErrorIs(t, err, ErrFileNotFound, path)
		assert.Nil(t, c, path)
	}
}

func Test_ReadContent_Corrupt(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	require.NoError(t, os.WriteFile(filepath.Join(lib.Root(), "broken.pdf"), pdftest.Corrupt(), 0o644))

	_, err := lib.ReadContent(context.Background(), "broken.pdf", PageRange{}, "")
	assert.ErrorIs(t, err, ErrCorruptDocument)
}

func Test_ReadContent_UnsupportedType(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	writeFile(t, lib.Root(), "image.png", "png")

	_, err := lib.ReadContent(context.Background(), "image.png", PageRange{}, "")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func Test_ReadContent_TooLarge(t *testing.T) {
	lib := newTestLibrary(t, Config{MaxFileSize: 16})
	writePdf(t, lib.Root(), "doc.pdf", "alpha")

	_, err := lib.ReadContent(context.Background(), "doc.pdf", PageRange{}, "")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func Test_ReadContent_Truncated(t *testing.T) {
	lib := newTestLibrary(t, Config{MaxContentLength: 20})
	writePdf(t, lib.Root(), "doc.pdf", strings.Repeat("long text ", 20))

	c, err := lib.ReadContent(context.Background(), "doc.pdf", PageRange{}, "")
	require.NoError(t, err)

	assert.True(t, c.Truncated)
	assert.LessOrEqual(t, len(c.Text), 20)
	assert.Equal(t, len(c.Text), c.TextLength)
}

func Test_ReadContent_TextFile(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	writeFile(t, lib.Root(), "notes.txt", "hello world")

	c, err := lib.ReadContent(context.Background(), "notes.txt", PageRange{}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, c.PageCount)
	assert.Equal(t, "--- Page 1 ---\nhello world", c.Text)
}

func Test_ReadContent_Cancelled(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	writePdf(t, lib.Root(), "doc.pdf", "alpha")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lib.ReadContent(ctx, "doc.pdf", PageRange{}, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_truncate(t *testing.T) {
	s, cut := truncate("hello", 0)
	assert.Equal(t, "hello", s)
	assert.False(t, cut)

	s, cut = truncate("hello", 5)
	assert.Equal(t, "hello", s)
	assert.False(t, cut)

	s, cut = truncate("hello", 3)
	assert.Equal(t, "hel", s)
	assert.True(t, cut)

	// "é" is two bytes and must not be split
	s, cut = truncate("aéb", 2)
	assert.Equal(t, "a", s)
	assert.True(t, cut)
}

func writeSectionedPdf(t *testing.T, root string) {
	t.Helper()

	pdftest.Write(t, root, "standard.pdf", pdftest.Doc{
		Pages: []string{"intro text", "scope text", "rules part one", "rules part two", "annex text"},
		Outline: []pdftest.Bookmark{
			{Title: "1. Introduction", Page: 1, Children: []pdftest.Bookmark{
				{Title: "1.1 Scope", Page: 2},
			}},
			{Title: "2. Compliance Rules", Page: 3, GoTo: true},
			{Title: "Appendix A: Data", Page: 5},
		},
	})
}

func Test_ReadContent_Section(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	writeSectionedPdf(t, lib.Root())

	c, err := lib.ReadContent(context.Background(), "standard.pdf", PageRange{}, "compliance RULES")
	require.NoError(t, err)

	assert.Equal(t, "compliance RULES", c.SectionFilter)
	assert.Equal(t, []string{"2. Compliance Rules"}, c.Sections)
	assert.True(t, strings.HasPrefix(c.Text, "=== 2. Compliance Rules ===\n"))
	assert.Contains(t, c.Text, "rules part one")
	assert.Contains(t, c.Text, "rules part two")
	assert.NotContains(t, c.Text, "intro text")
	assert.NotContains(t, c.Text, "annex text")
	assert.Equal(t, len(c.Text), c.TextLength)
	assert.Equal(t, "1-5", c.PageRange)

	c, err = lib.ReadContent(context.Background(), "standard.pdf", PageRange{}, "scope")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1 Scope"}, c.Sections)
	assert.Contains(t, c.Text, "scope text")
	assert.NotContains(t, c.Text, "intro text")

	c, err = lib.ReadContent(context.Background(), "standard.pdf", PageRange{}, "introduction")
	require.NoError(t, err)
	assert.Equal(t, []string{"1. Introduction"}, c.Sections)
	assert.Contains(t, c.Text, "intro text")
	assert.Equal(t, 1, strings.Count(c.Text, "scope text"))
}

func Test_ReadContent_SectionWithinPageRange(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	writeSectionedPdf(t, lib.Root())

	c, err := lib.ReadContent(context.Background(), "standard.pdf", PageRange{Start: 3, End: 3}, "rules")
	require.NoError(t, err)
	assert.Equal(t, []string{"2. Compliance Rules"}, c.Sections)
	assert.Contains(t, c.Text, "rules part one")
	assert.NotContains(t, c.Text, "rules part two")

	c, err = lib.ReadContent(context.Background(), "standard.pdf", PageRange{Start: 1, End: 2}, "appendix")
	require.NoError(t, err)
	assert.Empty(t, c.Sections)
	assert.Contains(t, c.Text, "--- Page 1 ---")
	assert.Contains(t, c.Text, "scope text")
}

func Test_ReadContent_SectionNoMatch(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	writeSectionedPdf(t, lib.Root())
	writeFile(t, lib.Root(), "notes.txt", "plain notes")

	c, err := lib.ReadContent(context.Background(), "standard.pdf", PageRange{}, "glossary")
	require.NoError(t, err)
	assert.Equal(t, "glossary", c.SectionFilter)
	assert.Empty(t, c.Sections)
	for _, text := range []string{"intro text", "rules part two", "annex text"} {
		assert.Contains(t, c.Text, text)
	}

	c, err = lib.ReadContent(context.Background(), "notes.txt", PageRange{}, "anything")
	require.NoError(t, err)
	assert.Empty(t, c.Sections)
	assert.Contains(t, c.Text, "plain notes")
}
