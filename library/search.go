package library

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

const excerptContext = 150

type SearchOptions struct {
	// Filter keeps documents whose file name contains it.
	Filter        string
	Limit         int
	CaseSensitive bool
	Semantic      bool
}

type SearchResult struct {
	File     string  `json:"file_path"`
	Name     string  `json:"file_name"`
	Page     int     `json:"page"`
	Position int     `json:"position"`
	Excerpt  string  `json:"excerpt"`
	Score    float32 `json:"score,omitempty"`
}

// Search scans the documents in the data directory for query. Results are
// ordered by document name, page and position.
func (l *Library) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = l.searchLimit
	}

	if opts.Semantic {
		return l.semanticSearch(ctx, query, opts.Filter, limit)
	}

	docs, err := l.documents(opts.Filter)
	if err != nil {
		return nil, err
	}

	res, err := l.scan(ctx, docs, func(doc *Document) []SearchResult {
		return matchDocument(doc, query, opts.CaseSensitive, limit)
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}

	return res, nil
}

// scan extracts docs concurrently and concatenates fn's results in the order
// of docs. Documents that cannot be read are logged and skipped.
func (l *Library) scan(ctx context.Context, docs []FileInfo, fn func(doc *Document) []SearchResult) ([]SearchResult, error) {
	found := make([][]SearchResult, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for i, f := range docs {
		g.Go(func() error {
			doc, err := l.Load(ctx, f.Path, PageRange{})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if errors.Is(err, ErrFileNotFound) {
					return nil
				}

				l.log.Warn("skipping unreadable document", "file", f.Path, "error", err)
				return nil
			}

			found[i] = fn(doc)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var res []SearchResult
	for _, r := range found {
		res = append(res, r...)
	}

	if res == nil {
		res = []SearchResult{}
	}

	return res, nil
}

func matchDocument(doc *Document, query string, caseSensitive bool, limit int) []SearchResult {
	var res []SearchResult

	for _, p := range doc.Pages {
		for from := 0; limit <= 0 || len(res) < limit; {
			start, end := index(p.Text, query, from, caseSensitive)
			if start < 0 {
				break
			}

			res = append(res, SearchResult{
				File:     doc.Path,
				Name:     doc.Name,
				Page:     p.Number,
				Position: start,
				Excerpt:  excerpt(p.Text, start, end),
			})

			from = end
		}
	}

	return res
}

// index returns the byte bounds of the first match of substr in s at or after
// from, or -1 when there is none.
func index(s, substr string, from int, caseSensitive bool) (int, int) {
	if caseSensitive {
		i := strings.Index(s[from:], substr)
		if i < 0 {
			return -1, -1
		}

		return from + i, from + i + len(substr)
	}

	n := utf8.RuneCountInString(substr)
	for i := from; i < len(s); {
		j := i
		for k := 0; k < n && j < len(s); k++ {
			_, size := utf8.DecodeRuneInString(s[j:])
			j += size
		}

		if strings.EqualFold(s[i:j], substr) {
			return i, j
		}

		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}

	return -1, -1
}

// excerpt returns the match at [start, end) with surrounding context, with
// whitespace runs collapsed.
func excerpt(s string, start, end int) string {
	from := max(0, start-excerptContext)
	for from > 0 && !utf8.RuneStart(s[from]) {
		from--
	}

	to := min(len(s), end+excerptContext)
	for to < len(s) && !utf8.RuneStart(s[to]) {
		to++
	}

	return strings.Join(strings.Fields(s[from:to]), " ")
}

func sortResults(res []SearchResult) {
	slices.SortStableFunc(res, func(a, b SearchResult) int {
		return cmp.Or(
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.File, b.File),
			cmp.Compare(a.Page, b.Page),
			cmp.Compare(a.Position, b.Position),
		)
	})
}
