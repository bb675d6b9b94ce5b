package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/docuchat/internal/core/domain"
	"github.com/kirillkom/docuchat/internal/core/ports"
)

type RetrieverConfig struct {
	VectorWeight  float64
	LexicalWeight float64
	OverFetch     int
}

func (c RetrieverConfig) normalize() RetrieverConfig {
	out := c
	if out.VectorWeight <= 0 && out.LexicalWeight <= 0 {
		out.VectorWeight = 0.7
		out.LexicalWeight = 0.3
	}
	if sum := out.VectorWeight + out.LexicalWeight; sum != 1.0 && sum > 0 {
		out.VectorWeight /= sum
		out.LexicalWeight /= sum
	}
	if out.OverFetch <= 0 {
		out.OverFetch = 3
	}
	return out
}

// HybridRetriever merges the dense and sparse rankings for one scope into a
// single deterministic ranking: over-fetch from each source, filter by the
// allow-list, min-max normalize each source independently, weight, sum by
// chunk key, stable-sort. The algorithm is source-agnostic; a third signal
// would be one more normalized column, not a restructure.
type HybridRetriever struct {
	embedder ports.Embedder
	dense    ports.VectorSearcher
	sparse   ports.LexicalSearcher
	cfg      RetrieverConfig
}

func NewHybridRetriever(
	embedder ports.Embedder,
	dense ports.VectorSearcher,
	sparse ports.LexicalSearcher,
	cfg RetrieverConfig,
) *HybridRetriever {
	return &HybridRetriever{
		embedder: embedder,
		dense:    dense,
		sparse:   sparse,
		cfg:      cfg.normalize(),
	}
}

// Retrieve returns the top-k merged results for the query within scope.
//
// Allow-list contract: nil = unrestricted; present-but-empty = match nothing,
// so the result is empty regardless of corpus size. An empty result from an
// empty corpus is a valid "no material" outcome, not an error; only a scope
// with no index on either side reports domain.ErrRetrievalUnavailable.
func (r *HybridRetriever) Retrieve(
	ctx context.Context,
	query, scope string,
	allow domain.AllowList,
	k int,
) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		k = 5
	}
	if allow.Restricted() && len(allow) == 0 {
		return []domain.RetrievalResult{}, nil
	}

	// Over-fetch so a sparse allow-list cannot starve the post-filter result.
	fetch := k * r.cfg.OverFetch

	denseHits, denseUnavailable, err := r.searchDense(ctx, query, scope, fetch)
	if err != nil {
		return nil, err
	}
	sparseHits, err := r.sparse.Search(ctx, scope, query, fetch)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	// Unavailability is judged on the raw hits: an allow-list that filters
	// every sparse hit out means an exhausted scope, not a missing index.
	if denseUnavailable && len(sparseHits) == 0 {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "hybrid retrieve",
			fmt.Errorf("no index for scope %q", scope))
	}

	denseHits = filterAllowed(denseHits, allow)
	sparseHits = filterAllowed(sparseHits, allow)

	merged := r.merge(denseHits, sparseHits)
	if len(merged) > k {
		merged = merged[:k]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged, nil
}

func (r *HybridRetriever) searchDense(ctx context.Context, query, scope string, fetch int) ([]domain.ScoredChunk, bool, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.dense.Search(ctx, scope, queryVector, fetch)
	if err != nil {
		if domain.IsKind(err, domain.ErrRetrievalUnavailable) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("vector search: %w", err)
	}
	return hits, false, nil
}

type hybridCandidate struct {
	chunk      domain.Chunk
	vector     float64
	lexical    float64
	hasVector  bool
	hasLexical bool
	vectorRank int
}

func (r *HybridRetriever) merge(dense, sparse []domain.ScoredChunk) []domain.RetrievalResult {
	normDense := normalizeMinMax(dense)
	normSparse := normalizeMinMax(sparse)

	acc := make(map[string]*hybridCandidate, len(dense)+len(sparse))
	order := make([]string, 0, len(dense)+len(sparse))

	upsert := func(chunk domain.Chunk) *hybridCandidate {
		key := chunk.Key()
		if c, ok := acc[key]; ok {
			return c
		}
		c := &hybridCandidate{chunk: chunk, vectorRank: math.MaxInt}
		acc[key] = c
		order = append(order, key)
		return c
	}

	for rank, hit := range dense {
		c := upsert(hit.Chunk)
		c.vector = normDense[rank]
		c.hasVector = true
		c.vectorRank = rank
	}
	for rank, hit := range sparse {
		c := upsert(hit.Chunk)
		c.lexical = normSparse[rank]
		c.hasLexical = true
	}

	out := make([]domain.RetrievalResult, 0, len(order))
	for _, key := range order {
		c := acc[key]
		// A chunk absent from one source contributes zero for that source;
		// absence is not evidence of irrelevance, so there is no penalty.
		combined := r.cfg.VectorWeight*c.vector + r.cfg.LexicalWeight*c.lexical
		out = append(out, domain.RetrievalResult{
			Chunk:         c.chunk,
			VectorScore:   c.vector,
			LexicalScore:  c.lexical,
			CombinedScore: combined,
		})
	}

	vectorRankOf := func(res domain.RetrievalResult) int {
		return acc[res.Chunk.Key()].vectorRank
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		ri, rj := vectorRankOf(out[i]), vectorRankOf(out[j])
		if ri != rj {
			return ri < rj
		}
		if out[i].Chunk.Source != out[j].Chunk.Source {
			return out[i].Chunk.Source < out[j].Chunk.Source
		}
		return out[i].Chunk.Key() < out[j].Chunk.Key()
	})
	return out
}

// normalizeMinMax maps one source's raw scores to [0,1], positionally.
// Degenerate case: when every score is equal (including a single result) each
// one normalizes to 1.0. A source that returned the chunk is treated as
// fully confident, not zeroed.
func normalizeMinMax(hits []domain.ScoredChunk) []float64 {
	if len(hits) == 0 {
		return nil
	}
	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	out := make([]float64, len(hits))
	span := maxScore - minScore
	for i, h := range hits {
		if span <= 0 {
			out[i] = 1.0
			continue
		}
		out[i] = (h.Score - minScore) / span
	}
	return out
}

func filterAllowed(hits []domain.ScoredChunk, allow domain.AllowList) []domain.ScoredChunk {
	if !allow.Restricted() {
		return hits
	}
	out := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if allow.Permits(h.Chunk.Source) {
			out = append(out, h)
		}
	}
	return out
}
