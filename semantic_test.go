package main

import (
	"context"
	"errors"
	"testing"

	"github.com/gamma-omg/pyramid-mcp/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChunkRetriever struct {
	mock.Mock
}

func (m *mockChunkRetriever) Retrieve(ctx context.Context, query string, files []string, n int) ([]docstore.SearchResult, error) {
	args := m.Called(ctx, query, files, n)
	return args.Get(0).([]docstore.SearchResult), args.Error(1)
}

func Test_storeRetriever_Retrieve(t *testing.T) {
	store := new(mockChunkRetriever)
	store.On("Retrieve", mock.Anything, "fuel state", []string{"/docs/a.pdf"}, 6).Return([]docstore.SearchResult{
		{Text: "fuel  monitor\nreports", File: "/docs/a.pdf", Page: 3, Distance: 0.25},
		{Text: "same page again", File: "/docs/a.pdf", Page: 3, Distance: 0.5},
		{Text: "other page", File: "/docs/a.pdf", Page: 4, Distance: 1},
	}, nil)

	r := &storeRetriever{store: store}

	res, err := r.Retrieve(context.Background(), "fuel state", []string{"/docs/a.pdf"}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "/docs/a.pdf", res[0].File)
	assert.Equal(t, 3, res[0].Page)
	assert.Equal(t, "fuel monitor reports", res[0].Excerpt)
	assert.InDelta(t, 0.8, res[0].Score, 0.0001)
	assert.Equal(t, 4, res[1].Page)
	assert.InDelta(t, 0.5, res[1].Score, 0.0001)

	store.AssertExpectations(t)
}

func Test_storeRetriever_Error(t *testing.T) {
	store := new(mockChunkRetriever)
	store.On("Retrieve", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]docstore.SearchResult(nil), errors.New("connection refused"))

	r := &storeRetriever{store: store}

	_, err := r.Retrieve(context.Background(), "q", nil, 1)
	assert.EqualError(t, err, "connection refused")
}
