package library

import (
	"cmp"
	"context"
	"path/filepath"
	"slices"
	"strings"
)

const semanticExcerptLen = 300

// Retriever finds the pages closest in meaning to a query. Higher scores are
// better. A nil files searches the whole library, otherwise only the listed
// documents are considered.
type Retriever interface {
	Retrieve(ctx context.Context, query string, files []string, limit int) ([]SearchResult, error)
}

type Scorer interface {
	Score(query, text string) float32
}

func (l *Library) semanticSearch(ctx context.Context, query, filter string, limit int) ([]SearchResult, error) {
	if l.semantic == nil {
		return nil, ErrSemanticDisabled
	}

	filter = strings.ToLower(strings.TrimSpace(filter))

	var files []string
	if filter != "" {
		docs, err := l.documents(filter)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return []SearchResult{}, nil
		}

		files = make([]string, 0, len(docs))
		for _, d := range docs {
			files = append(files, d.Path)
		}
	}

	found, err := l.semantic.Retrieve(ctx, query, files, limit)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)

	res := make([]SearchResult, 0, len(found))
	for _, r := range found {
		if r.Name == "" {
			r.Name = filepath.Base(r.File)
		}
		if filter != "" && !strings.Contains(strings.ToLower(r.Name), filter) {
			continue
		}

		count, ok := counts[r.File]
		if !ok {
			count, err = l.PageCount(r.File)
			if err != nil {
				// indexed file is gone or unreadable
				l.log.Debug("dropping stale semantic result", "file", r.File, "error", err)
				count = 0
			}
			counts[r.File] = count
		}

		if r.Page < 1 || r.Page > count {
			continue
		}

		res = append(res, r)
	}

	slices.SortStableFunc(res, func(a, b SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}

	sortResults(res)
	return res, nil
}

// ScoringRetriever ranks every page in the library with a Scorer.
type ScoringRetriever struct {
	lib       *Library
	scorer    Scorer
	threshold float32
}

func NewScoringRetriever(lib *Library, scorer Scorer, threshold float32) *ScoringRetriever {
	return &ScoringRetriever{
		lib:       lib,
		scorer:    scorer,
		threshold: threshold,
	}
}

func (r *ScoringRetriever) Retrieve(ctx context.Context, query string, files []string, limit int) ([]SearchResult, error) {
	docs, err := r.lib.documents("")
	if err != nil {
		return nil, err
	}

	if files != nil {
		docs = slices.DeleteFunc(docs, func(f FileInfo) bool {
			return !slices.Contains(files, f.Path)
		})
	}

	res, err := r.lib.scan(ctx, docs, func(doc *Document) []SearchResult {
		var scored []SearchResult
		for _, p := range doc.Pages {
			score := r.scorer.Score(query, p.Text)
			if score <= r.threshold {
				continue
			}

			text, _ := truncate(strings.Join(strings.Fields(p.Text), " "), semanticExcerptLen)
			scored = append(scored, SearchResult{
				File:    doc.Path,
				Name:    doc.Name,
				Page:    p.Number,
				Excerpt: text,
				Score:   score,
			})
		}

		return scored
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(res, func(a, b SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}

	return res, nil
}
