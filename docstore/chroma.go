// Package docstore keeps page chunks of the document library in a Chroma
// collection for similarity search.
package docstore

import (
	"context"
	"errors"
	"fmt"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

const (
	FilePath = "file_path"
	FileCrc  = "file_crc"
	PageNum  = "page"
)

const DefaultCollection = "pyramid-docs"

type ChromaStoreConfig struct {
	BaseURL       string
	Collection    string
	EmbeddingFunc embeddings.EmbeddingFunction
	// Results is the number of chunks a query returns when the caller
	// does not ask for a specific number.
	Results int
	// RequestSize caps the bytes of chunk text sent in one request.
	RequestSize int
	Reset       bool
}

type ChromaStore struct {
	results     int
	requestSize int
	client      chroma.Client
	col         chroma.Collection
}

func NewChromaStore(ctx context.Context, cfg ChromaStoreConfig) (*ChromaStore, error) {
	if cfg.EmbeddingFunc == nil {
		return nil, errors.New("embedding function is required")
	}

	name := cfg.Collection
	if name == "" {
		name = DefaultCollection
	}

	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	if cfg.Reset {
		// a missing collection is not an error here
		_ = client.DeleteCollection(ctx, name)
	}

	col, err := client.GetOrCreateCollection(ctx, name, chroma.WithEmbeddingFunctionCreate(cfg.EmbeddingFunc))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}

	return &ChromaStore{
		results:     cfg.Results,
		requestSize: cfg.RequestSize,
		client:      client,
		col:         col,
	}, nil
}

func (ds *ChromaStore) Ingest(ctx context.Context, doc Doc) error {
	for _, batch := range batches(doc.Chunks, ds.requestSize) {
		texts := make([]string, 0, len(batch))
		metas := make([]chroma.DocumentMetadata, 0, len(batch))

		for _, c := range batch {
			texts = append(texts, c.Text)
			metas = append(metas, chroma.NewDocumentMetadata(
				chroma.NewStringAttribute(FilePath, doc.File),
				chroma.NewIntAttribute(FileCrc, int64(doc.Crc)),
				chroma.NewIntAttribute(PageNum, int64(c.Page)),
			))
		}

		err := ds.col.Add(ctx,
			chroma.WithTexts(texts...),
			chroma.WithIDGenerator(chroma.NewULIDGenerator()),
			chroma.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("failed to add chunks of %s: %w", doc.File, err)
		}
	}

	return nil
}

// Retrieve returns up to n chunks closest to query, nearest first. A
// non-positive n uses the configured number of results. A non-empty files
// restricts the query to chunks of those documents.
func (ds *ChromaStore) Retrieve(ctx context.Context, query string, files []string, n int) ([]SearchResult, error) {
	if n <= 0 {
		n = ds.results
	}

	opts := []chroma.CollectionQueryOption{
		chroma.WithQueryTexts(query),
		chroma.WithNResults(n),
	}
	if len(files) > 0 {
		opts = append(opts, chroma.WithWhereQuery(chroma.InString(FilePath, files...)))
	}

	r, err := ds.col.Query(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve texts: %w", err)
	}

	docGroups := r.GetDocumentsGroups()
	metaGroups := r.GetMetadatasGroups()
	distGroups := r.GetDistancesGroups()
	if len(docGroups) == 0 || len(metaGroups) == 0 || len(distGroups) == 0 {
		return []SearchResult{}, nil
	}

	texts := make([]string, 0, len(docGroups[0]))
	for _, d := range docGroups[0] {
		texts = append(texts, d.ContentString())
	}

	dists := make([]float32, 0, len(distGroups[0]))
	for _, d := range distGroups[0] {
		dists = append(dists, float32(d))
	}

	return searchResults(texts, metaGroups[0], dists), nil
}

func (ds *ChromaStore) Forget(ctx context.Context, doc IngestedDoc) error {
	err := ds.col.Delete(ctx, chroma.WithWhereDelete(chroma.EqString(FilePath, doc.File)))
	if err != nil {
		return fmt.Errorf("failed to forget doc %s: %w", doc.File, err)
	}

	return nil
}

func (ds *ChromaStore) GetIngested(ctx context.Context) ([]IngestedDoc, error) {
	res, err := ds.col.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingested docs: %w", err)
	}

	return ingestedDocs(res.GetMetadatas()), nil
}

func (ds *ChromaStore) Close() error {
	return ds.client.Close()
}

// batches splits chunks into runs whose text adds up to at most size bytes.
// A chunk larger than size gets a batch of its own.
func batches(chunks []Chunk, size int) [][]Chunk {
	if len(chunks) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]Chunk{chunks}
	}

	var res [][]Chunk
	start, total := 0, 0

	for i, c := range chunks {
		if i > start && total+len(c.Text) > size {
			res = append(res, chunks[start:i])
			start, total = i, 0
		}

		total += len(c.Text)
	}

	return append(res, chunks[start:])
}

func searchResults(texts []string, metas []chroma.DocumentMetadata, dists []float32) []SearchResult {
	n := min(len(texts), len(metas), len(dists))

	res := make([]SearchResult, 0, n)
	for i := range n {
		var file string
		var page int64
		if metas[i] != nil {
			file, _ = metas[i].GetString(FilePath)
			page = intAttr(metas[i], PageNum)
		}

		res = append(res, SearchResult{
			Text:     texts[i],
			File:     file,
			Page:     int(page),
			Distance: dists[i],
		})
	}

	return res
}

func ingestedDocs(metas []chroma.DocumentMetadata) []IngestedDoc {
	var docs []IngestedDoc
	seen := make(map[IngestedDoc]struct{})

	for _, meta := range metas {
		if meta == nil {
			continue
		}

		path, _ := meta.GetString(FilePath)
		doc := IngestedDoc{
			File: path,
			Crc:  uint32(intAttr(meta, FileCrc)),
		}

		if _, ok := seen[doc]; ok {
			continue
		}

		seen[doc] = struct{}{}
		docs = append(docs, doc)
	}

	return docs
}

// intAttr reads an integer attribute that may come back from the server as
// a JSON float.
func intAttr(meta chroma.DocumentMetadata, key string) int64 {
	if v, ok := meta.GetInt(key); ok {
		return v
	}
	if v, ok := meta.GetFloat(key); ok {
		return int64(v)
	}

	return 0
}
