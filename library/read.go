package library

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gamma-omg/pyramid-mcp/readers"
)

type Content struct {
	File          string   `json:"file_path"`
	Name          string   `json:"file_name"`
	PageRange     string   `json:"page_range"`
	SectionFilter string   `json:"section_filter,omitempty"`
	Sections      []string `json:"matched_sections,omitempty"`
	PageCount     int      `json:"total_pages"`
	Text          string   `json:"text"`
	TextLength    int      `json:"text_length"`
	Truncated     bool     `json:"truncated"`
	Pages         []Page   `json:"-"`
}

// ReadContent extracts the pages in r from path. With a non-empty section,
// only the pages of bookmarked sections whose title contains it are returned,
// each under a "=== title ===" marker; when no section matches, all pages in
// r are. The text is cut to the configured maximum content length.
func (l *Library) ReadContent(ctx context.Context, path string, r PageRange, section string) (*Content, error) {
	file, info, err := l.resolve(path)
	if err != nil {
		return nil, err
	}

	doc, err := l.load(ctx, file, info, r)
	if err != nil {
		return nil, err
	}

	res := &Content{
		File:          doc.Path,
		Name:          doc.Name,
		PageRange:     r.String(),
		SectionFilter: section,
		PageCount:     doc.PageCount,
		Pages:         doc.Pages,
	}
	if res.PageRange == "" {
		res.PageRange = fmt.Sprintf("1-%d", doc.PageCount)
	}

	text := joinPages(doc.Pages)

	if strings.TrimSpace(section) != "" {
		items, err := l.readOutline(file, info)
		if err != nil {
			return nil, err
		}

		var parts []string
		for _, s := range matchSections(items, section) {
			pages := pagesBetween(doc.Pages, s.PageStart, max(s.PageStart, s.PageEnd))
			if len(pages) == 0 {
				continue
			}

			res.Sections = append(res.Sections, s.Title)
			parts = append(parts, fmt.Sprintf("=== %s ===\n%s", s.Title, joinPages(pages)))
		}

		if len(parts) > 0 {
			text = strings.Join(parts, "\n\n")
		}
	}

	res.Text, res.Truncated = truncate(text, l.maxContentLength)
	res.TextLength = len(res.Text)

	return res, nil
}

// matchSections returns the bookmarks with a destination page whose title
// contains filter, case-insensitively. Children of a match are not visited.
func matchSections(items []readers.OutlineItem, filter string) []readers.OutlineItem {
	filter = strings.ToLower(strings.TrimSpace(filter))

	var res []readers.OutlineItem
	for _, item := range items {
		if item.PageStart > 0 && strings.Contains(strings.ToLower(item.Title), filter) {
			res = append(res, item)
			continue
		}

		res = append(res, matchSections(item.Children, filter)...)
	}

	return res
}

func pagesBetween(pages []Page, start, end int) []Page {
	var res []Page
	for _, p := range pages {
		if p.Number >= start && p.Number <= end {
			res = append(res, p)
		}
	}

	return res
}

func joinPages(pages []Page) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n", p.Number)
		b.WriteString(p.Text)
	}

	return b.String()
}

// truncate cuts s to at most limit bytes without splitting a rune.
// A non-positive limit disables truncation.
func truncate(s string, limit int) (string, bool) {
	if limit <= 0 || len(s) <= limit {
		return s, false
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut], true
}
