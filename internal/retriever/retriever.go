// Package retriever answers "top-k most similar documents" queries against
// the vector store, with normalized similarity scores.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/smartbeauty/skincare-rag/internal/storage"
)

// ErrModelMismatch means the query embedder does not match the model the
// collection was ingested with. Operator-fixable, fatal to the call.
var ErrModelMismatch = errors.New("embedding model mismatch between ingestion and query")

// ErrInvalidK means the requested result count is not positive.
var ErrInvalidK = errors.New("result count must be at least 1")

// Embedder produces query embeddings. It must be the same model used at
// ingestion time; Search verifies the dimensions agree.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Searcher is the subset of the vector store the retriever reads through.
type Searcher interface {
	Search(ctx context.Context, collection string, embedding []float32, limit int, typeFilter string) ([]*storage.ScoredDocument, error)
	CollectionDimension(ctx context.Context, collection string) (int, error)
}

// Result is one retrieved document with its normalized similarity and rank.
type Result struct {
	Document   *storage.Document
	Similarity float64 // in [0, 1], 1.0 means identical
	Rank       int     // starting at 1
}

// Results is an ordered retrieval result, descending by similarity.
type Results []Result

// Retriever wraps the vector store with query embedding and score normalization.
type Retriever struct {
	embedder Embedder
	store    Searcher
	logger   *slog.Logger
}

// New creates a retriever over the given embedder and store.
func New(embedder Embedder, store Searcher, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Search returns the top-k documents most similar to the query text,
// optionally restricted to documents whose metadata type matches typeFilter.
// A collection with no documents yields an empty result, not an error. No
// score threshold is applied; low-similarity results are the caller's to judge.
func (r *Retriever) Search(ctx context.Context, collection, query string, k int, typeFilter string) (Results, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}

	dim, err := r.store.CollectionDimension(ctx, collection)
	if err != nil {
		if errors.Is(err, storage.ErrCollectionNotFound) {
			// Collections are created on first ingestion; before that the
			// collection simply has zero documents.
			return Results{}, nil
		}
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if dim != r.embedder.Dimension() {
		return nil, fmt.Errorf("%w: collection %s has %d dimensions, embedder produces %d",
			ErrModelMismatch, collection, dim, r.embedder.Dimension())
	}

	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored, err := r.store.Search(ctx, collection, embedding, k, typeFilter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make(Results, 0, len(scored))
	for i, s := range scored {
		results = append(results, Result{
			Document:   s.Document,
			Similarity: normalize(s.Score),
			Rank:       i + 1,
		})
	}

	r.logger.Debug("Retrieved documents", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// normalize clamps a cosine similarity score into [0, 1]. Qdrant returns
// cosine similarity directly, but floating point can nudge it past the bounds
// and near-opposite vectors go negative.
func normalize(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
