// Package ranker scores page text against a query by term frequency cosine
// similarity. It needs no external services, so it backs semantic search when
// no vector store is configured.
package ranker

import (
	"math"
	"strings"

	"github.com/bbalet/stopwords"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jdkato/prose/v2"
)

// DefaultQueryCacheSize is the number of recent queries whose term
// frequencies are kept.
const DefaultQueryCacheSize = 128

type TermScorer struct {
	lang    string
	queries *lru.Cache[string, map[string]float64]
}

// NewTermScorer creates a scorer for stopword language lang ("en" when
// empty) that caches up to cacheSize queries. A non-positive cacheSize uses
// DefaultQueryCacheSize.
func NewTermScorer(lang string, cacheSize int) *TermScorer {
	if lang == "" {
		lang = "en"
	}
	if cacheSize <= 0 {
		cacheSize = DefaultQueryCacheSize
	}

	// only fails for a non-positive size
	queries, _ := lru.New[string, map[string]float64](cacheSize)

	return &TermScorer{
		lang:    lang,
		queries: queries,
	}
}

// Score returns the cosine similarity of the term frequencies of query and
// text, in [0, 1].
func (s *TermScorer) Score(query, text string) float32 {
	q := s.query(query)
	if len(q) == 0 {
		return 0
	}

	return Cosine(q, s.frequencies(text))
}

func (s *TermScorer) query(query string) map[string]float64 {
	if tf, ok := s.queries.Get(query); ok {
		return tf
	}

	tf := s.frequencies(query)
	s.queries.Add(query, tf)
	return tf
}

func (s *TermScorer) frequencies(text string) map[string]float64 {
	text = strings.ToLower(stopwords.CleanString(text, s.lang, false))
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false))
	if err != nil {
		return nil
	}

	return TermFrequencies(doc.Tokens())
}

// TermFrequencies maps each token to its share of all tokens.
func TermFrequencies(tokens []prose.Token) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t.Text]++
	}
	for term := range tf {
		tf[term] /= float64(len(tokens))
	}

	return tf
}

func Cosine(a, b map[string]float64) float32 {
	var dot, magA, magB float64

	for term, x := range a {
		if y, ok := b[term]; ok {
			dot += x * y
		}
		magA += x * x
	}
	for _, y := range b {
		magB += y * y
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}
