// Package memvec is an in-process dense index used in tests and in
// deployments without a vector database. Brute-force inner product over
// normalized vectors, which equals cosine similarity.
package memvec

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/docuchat/internal/core/domain"
)

type entry struct {
	chunk  domain.Chunk
	vector []float32
}

type scopeIndex struct {
	dims    int
	entries []entry
}

// Store implements ports.VectorSearcher. Each scope holds its own index;
// indexing a document's chunks replaces that document's previous entries in
// one locked swap, so concurrent searches never see a half-replaced corpus.
type Store struct {
	mu     sync.RWMutex
	scopes map[string]*scopeIndex
}

func NewStore() *Store {
	return &Store{scopes: make(map[string]*scopeIndex)}
}

func (s *Store) IndexChunks(_ context.Context, scope string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}
	dims := len(vectors[0])
	if dims == 0 {
		return fmt.Errorf("zero-dimensional vectors")
	}

	replaced := make(map[string]struct{}, 1)
	for _, c := range chunks {
		replaced[c.Source] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ix, ok := s.scopes[scope]
	if !ok {
		ix = &scopeIndex{dims: dims}
		s.scopes[scope] = ix
	}
	if ix.dims != dims {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", dims, ix.dims)
	}

	kept := make([]entry, 0, len(ix.entries)+len(chunks))
	for _, e := range ix.entries {
		if _, drop := replaced[e.chunk.Source]; !drop {
			kept = append(kept, e)
		}
	}
	for i, c := range chunks {
		vec := make([]float32, dims)
		copy(vec, vectors[i])
		kept = append(kept, entry{chunk: c, vector: vec})
	}
	ix.entries = kept
	return nil
}

func (s *Store) Search(_ context.Context, scope string, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ix, ok := s.scopes[scope]
	if !ok {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "memvec search", fmt.Errorf("no index for scope %q", scope))
	}
	if limit <= 0 || len(ix.entries) == 0 {
		return nil, nil
	}
	if len(queryVector) != ix.dims {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(queryVector), ix.dims)
	}

	out := make([]domain.ScoredChunk, 0, len(ix.entries))
	for _, e := range ix.entries {
		var dot float64
		for i := 0; i < ix.dims; i++ {
			dot += float64(queryVector[i] * e.vector[i])
		}
		out = append(out, domain.ScoredChunk{Chunk: e.chunk, Score: dot})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.Key() < out[j].Chunk.Key()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
