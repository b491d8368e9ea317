package main

import (
	"context"
	"strings"

	"github.com/gamma-omg/pyramid-mcp/docstore"
	"github.com/gamma-omg/pyramid-mcp/library"
)

// chunks fetched per requested page, pages are usually split in several
const chunkOversample = 3

type chunkRetriever interface {
	Retrieve(ctx context.Context, query string, files []string, n int) ([]docstore.SearchResult, error)
}

// storeRetriever turns the nearest chunks in the vector store into page
// results, one per page.
type storeRetriever struct {
	store chunkRetriever
}

func (r *storeRetriever) Retrieve(ctx context.Context, query string, files []string, limit int) ([]library.SearchResult, error) {
	chunks, err := r.store.Retrieve(ctx, query, files, limit*chunkOversample)
	if err != nil {
		return nil, err
	}

	type pageKey struct {
		file string
		page int
	}

	seen := make(map[pageKey]struct{})
	res := make([]library.SearchResult, 0, len(chunks))

	for _, c := range chunks {
		key := pageKey{file: c.File, page: c.Page}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		res = append(res, library.SearchResult{
			File:    c.File,
			Page:    c.Page,
			Excerpt: strings.Join(strings.Fields(c.Text), " "),
			Score:   1 / (1 + max(c.Distance, 0)),
		})
	}

	return res, nil
}
