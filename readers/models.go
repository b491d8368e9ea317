package readers

import (
	"fmt"
	"time"
)

// Document is an opened file whose page texts are extracted on demand.
// Pages are numbered from 1.
type Document interface {
	NumPages() int
	PageText(n int) (string, error)
	Close() error
}

type Metadata struct {
	Title            string
	Author           string
	Subject          string
	Creator          string
	Producer         string
	CreationDate     *time.Time
	ModificationDate *time.Time
	PageCount        int
	HasBookmarks     bool
}

// OutlineItem is a bookmark. PageStart and PageEnd are 0 when the bookmark
// has no destination page.
type OutlineItem struct {
	Title         string        `json:"title"`
	Level         int           `json:"level"`
	SectionNumber string        `json:"section_number,omitempty"`
	SectionType   string        `json:"section_type,omitempty"`
	PageStart     int           `json:"page_start,omitempty"`
	PageEnd       int           `json:"page_end,omitempty"`
	Children      []OutlineItem `json:"subsections"`
}

// textDocument exposes formats without a page model as a single page.
type textDocument struct {
	text string
}

func (d *textDocument) NumPages() int {
	return 1
}

func (d *textDocument) PageText(n int) (string, error) {
	if n != 1 {
		return "", fmt.Errorf("page %d out of range [1, 1]", n)
	}

	return d.text, nil
}

func (d *textDocument) Close() error {
	return nil
}
