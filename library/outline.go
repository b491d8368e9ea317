package library

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gamma-omg/pyramid-mcp/readers"
)

type Outline struct {
	File            string                `json:"file_path"`
	Name            string                `json:"file_name"`
	Items           []readers.OutlineItem `json:"outline"`
	TotalSections   int                   `json:"total_sections"`
	MaxDepth        int                   `json:"max_depth"`
	NumberingScheme string                `json:"section_numbering_scheme"`
}

// DocumentStructure summarizes the outline of a document.
type DocumentStructure struct {
	TotalSections   int      `json:"total_sections"`
	MaxDepth        int      `json:"max_depth"`
	NumberingScheme string   `json:"section_numbering_scheme"`
	SectionTitles   []string `json:"section_titles"`
}

// top level titles listed in DocumentStructure
const structureTitles = 10

var (
	numericHeading    = regexp.MustCompile(`^\d+(?:\.\d+)*\.`)
	alphabeticHeading = regexp.MustCompile(`^[A-Z](?:\.\d+)*\.`)
	romanHeading      = regexp.MustCompile(`^[IVX]+\.`)
)

var sectionNumbers = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+\S`),
	regexp.MustCompile(`^([A-Z](?:\.\d+)*)\.\s+\S`),
	regexp.MustCompile(`^([IVX]+)\.\s+\S`),
	regexp.MustCompile(`(?i)^(appendix\s+[A-Z0-9]+)\s*[-:.]\s*\S`),
	regexp.MustCompile(`(?i)^(chapter\s+\d+)\s*[-:.]\s*\S`),
}

var sectionKeywords = []struct {
	kind  string
	words []string
}{
	{"title", []string{"title", "executive summary", "abstract"}},
	{"chapter", []string{"chapter"}},
	{"appendix", []string{"appendix", "annex"}},
	{"reference", []string{"references", "bibliography", "citations", "reference"}},
	{"glossary", []string{"glossary", "definitions", "terminology", "definition"}},
	{"index", []string{"index", "contents"}},
}

// Outline returns the bookmark tree of path.
func (l *Library) Outline(ctx context.Context, path string) (*Outline, error) {
	file, info, err := l.resolve(path)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := l.readOutline(file, info)
	if err != nil {
		return nil, err
	}

	s := structureOf(items)

	return &Outline{
		File:            file,
		Name:            filepath.Base(file),
		Items:           items,
		TotalSections:   s.TotalSections,
		MaxDepth:        s.MaxDepth,
		NumberingScheme: s.NumberingScheme,
	}, nil
}

// readOutline returns the annotated bookmarks of file. Formats without an
// outline reader have none.
func (l *Library) readOutline(file string, info fs.FileInfo) ([]readers.OutlineItem, error) {
	name := filepath.Base(file)

	reader, ok := l.readers[strings.ToLower(filepath.Ext(file))].(OutlineReader)
	if !ok {
		if !l.Supported(file) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, name)
		}

		return []readers.OutlineItem{}, nil
	}

	if l.maxFileSize > 0 && info.Size() > l.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (max: %d)", ErrFileTooLarge, name, info.Size(), l.maxFileSize)
	}

	items, err := reader.ReadOutline(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptDocument, name, err)
	}
	if items == nil {
		items = []readers.OutlineItem{}
	}

	annotate(items)
	return items, nil
}

func annotate(items []readers.OutlineItem) {
	for i := range items {
		items[i].SectionNumber = SectionNumber(items[i].Title)
		items[i].SectionType = SectionType(items[i].Title)
		annotate(items[i].Children)
	}
}

func structureOf(items []readers.OutlineItem) DocumentStructure {
	var titles []string
	count, depth := walkOutline(items, 1, &titles)

	top := make([]string, 0, min(len(items), structureTitles))
	for _, item := range items[:min(len(items), structureTitles)] {
		top = append(top, item.Title)
	}

	return DocumentStructure{
		TotalSections:   count,
		MaxDepth:        depth,
		NumberingScheme: NumberingScheme(titles),
		SectionTitles:   top,
	}
}

func walkOutline(items []readers.OutlineItem, depth int, titles *[]string) (count int, maxDepth int) {
	if len(items) > 0 {
		maxDepth = depth
	}

	for _, item := range items {
		*titles = append(*titles, item.Title)

		n, d := walkOutline(item.Children, depth+1, titles)
		count += n + 1
		maxDepth = max(maxDepth, d)
	}

	return count, maxDepth
}

// SectionNumber returns the leading number of a heading such as "1.2 Scope",
// "A. Annex" or "Appendix B: Data", or "" when there is none.
func SectionNumber(title string) string {
	title = strings.TrimSpace(title)
	for _, p := range sectionNumbers {
		if m := p.FindStringSubmatch(title); m != nil {
			return m[1]
		}
	}

	return ""
}

// SectionType classifies a heading by its keywords, e.g. "appendix" or
// "glossary". Headings without a keyword are "section".
func SectionType(title string) string {
	title = strings.ToLower(title)
	for _, k := range sectionKeywords {
		for _, w := range k.words {
			if strings.Contains(title, w) {
				return k.kind
			}
		}
	}

	return "section"
}

// NumberingScheme picks the most common heading numbering among titles:
// numeric, alphabetic, roman or mixed. It returns "none" for no titles.
func NumberingScheme(titles []string) string {
	if len(titles) == 0 {
		return "none"
	}

	schemes := []string{"numeric", "alphabetic", "roman", "mixed"}
	counts := make(map[string]int, len(schemes))

	for _, t := range titles {
		t = strings.TrimSpace(t)
		switch {
		case numericHeading.MatchString(t):
			counts["numeric"]++
		case alphabeticHeading.MatchString(t):
			counts["alphabetic"]++
		case romanHeading.MatchString(t):
			counts["roman"]++
		default:
			counts["mixed"]++
		}
	}

	best := schemes[0]
	for _, s := range schemes[1:] {
		if counts[s] > counts[best] {
			best = s
		}
	}

	return best
}
