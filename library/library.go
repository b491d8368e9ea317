// Package library provides read-only access to a directory of documents:
// listing files, extracting page text and searching it.
package library

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gamma-omg/pyramid-mcp/readers"
)

// PageReader opens documents of the file types it reports in Exts.
type PageReader interface {
	Exts() []string
	Open(path string) (readers.Document, error)
}

type MetadataReader interface {
	ReadMetadata(path string) (readers.Metadata, error)
}

type OutlineReader interface {
	ReadOutline(path string) ([]readers.OutlineItem, error)
}

type Config struct {
	Root             string
	MaxContentLength int
	SearchLimit      int
	MaxFileSize      int64
	Workers          int
}

type Library struct {
	log              *slog.Logger
	root             string
	maxContentLength int
	searchLimit      int
	maxFileSize      int64
	workers          int
	readers          map[string]PageReader
	semantic         Retriever
}

// Document holds the page texts extracted from a file for one request.
type Document struct {
	Path      string
	Name      string
	PageCount int
	Pages     []Page
}

type Page struct {
	Number int    `json:"page_number"`
	Text   string `json:"text"`
}

func New(cfg Config, log *slog.Logger) *Library {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Library{
		log:              log,
		root:             cfg.Root,
		maxContentLength: cfg.MaxContentLength,
		searchLimit:      cfg.SearchLimit,
		maxFileSize:      cfg.MaxFileSize,
		workers:          workers,
		readers:          make(map[string]PageReader),
	}
}

func (l *Library) Root() string {
	return l.root
}

func (l *Library) RegisterReader(readers ...PageReader) error {
	for _, r := range readers {
		for _, ext := range r.Exts() {
			ext = strings.ToLower(ext)
			if _, ok := l.readers[ext]; ok {
				return fmt.Errorf("reader already registered for type %s", ext)
			}

			l.readers[ext] = r
		}
	}

	return nil
}

// EnableSemantic turns on semantic search backed by r.
func (l *Library) EnableSemantic(r Retriever) {
	l.semantic = r
}

func (l *Library) SemanticEnabled() bool {
	return l.semantic != nil
}

// Supported reports whether a reader is registered for the file's extension.
func (l *Library) Supported(path string) bool {
	_, ok := l.readers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load opens path, extracts the pages in r and closes the file.
func (l *Library) Load(ctx context.Context, path string, r PageRange) (*Document, error) {
	file, info, err := l.resolve(path)
	if err != nil {
		return nil, err
	}

	return l.load(ctx, file, info, r)
}

// PageCount opens path only to count its pages.
func (l *Library) PageCount(path string) (int, error) {
	file, info, err := l.resolve(path)
	if err != nil {
		return 0, err
	}

	doc, err := l.open(file, info)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	return doc.NumPages(), nil
}

func (l *Library) load(ctx context.Context, file string, info fs.FileInfo, r PageRange) (*Document, error) {
	doc, err := l.open(file, info)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	count := doc.NumPages()
	start, end, err := r.bounds(count)
	if err != nil {
		return nil, err
	}

	res := &Document{
		Path:      file,
		Name:      filepath.Base(file),
		PageCount: count,
		Pages:     make([]Page, 0, end-start+1),
	}

	for n := start; n <= end; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := doc.PageText(n)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptDocument, res.Name, err)
		}

		res.Pages = append(res.Pages, Page{Number: n, Text: text})
	}

	return res, nil
}

func (l *Library) open(file string, info fs.FileInfo) (readers.Document, error) {
	reader, ok := l.readers[strings.ToLower(filepath.Ext(file))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Base(file))
	}

	if l.maxFileSize > 0 && info.Size() > l.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (max: %d)", ErrFileTooLarge, filepath.Base(file), info.Size(), l.maxFileSize)
	}

	doc, err := reader.Open(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptDocument, filepath.Base(file), err)
	}

	return doc, nil
}

// resolve maps a path relative to the data directory, or an absolute path
// inside it, to an existing regular file. Symlinks are not followed, in line
// with ListFiles.
func (l *Library) resolve(path string) (string, fs.FileInfo, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil, fmt.Errorf("%w: empty path", ErrFileNotFound)
	}

	root, err := filepath.Abs(l.root)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	file := path
	if !filepath.IsAbs(file) {
		file = filepath.Join(root, file)
	}
	file = filepath.Clean(file)

	if !within(root, file) {
		return "", nil, fmt.Errorf("%w: %s is outside the data directory", ErrFileNotFound, path)
	}

	info, err := os.Lstat(file)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	realFile, err := filepath.EvalSymlinks(file)
	if err != nil || !within(realRoot, realFile) {
		return "", nil, fmt.Errorf("%w: %s is outside the data directory", ErrFileNotFound, path)
	}

	return file, info, nil
}

// within reports whether path lies strictly inside dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
