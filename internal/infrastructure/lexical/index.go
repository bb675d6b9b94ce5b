package lexical

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/docuchat/internal/core/domain"
)

const (
	bm25K1        = 1.2
	filenameBoost = 1.5
)

// Index is an immutable sparse term-frequency index over one scope's chunk
// corpus. It is built in full and never mutated; reindexing builds a fresh
// Index and swaps it in through the Registry.
type Index struct {
	chunks   []domain.Chunk
	postings map[string][]posting
	docCount int
}

type posting struct {
	chunk int
	tf    float64
}

// Build constructs an index over the given corpus. An empty corpus yields a
// valid, empty index.
func Build(chunks []domain.Chunk) *Index {
	ix := &Index{
		chunks:   append([]domain.Chunk(nil), chunks...),
		postings: make(map[string][]posting),
		docCount: len(chunks),
	}
	for i, chunk := range ix.chunks {
		tf := make(map[string]float64, 64)
		for _, token := range Tokenize(chunk.Content) {
			tf[token]++
		}
		for _, token := range Tokenize(chunk.Source) {
			tf[token] += filenameBoost
		}
		for token, freq := range tf {
			ix.postings[token] = append(ix.postings[token], posting{chunk: i, tf: freq})
		}
	}
	return ix
}

// Len reports the number of indexed chunks.
func (ix *Index) Len() int {
	return ix.docCount
}

// Chunks returns a copy of the indexed corpus, used when rebuilding a scope
// after a document change.
func (ix *Index) Chunks() []domain.Chunk {
	return append([]domain.Chunk(nil), ix.chunks...)
}

// Search ranks chunks against the query by BM25-saturated TF-IDF. Raw scores
// are not comparable with dense similarity; the retriever normalizes both
// sides independently before merging.
func (ix *Index) Search(query string, k int) []domain.ScoredChunk {
	if ix == nil || ix.docCount == 0 || k <= 0 {
		return nil
	}
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(terms))
	scores := make(map[int]float64)
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		list, ok := ix.postings[term]
		if !ok {
			continue
		}
		df := float64(len(list))
		idf := math.Log(1.0 + (float64(ix.docCount)-df+0.5)/(df+0.5))
		for _, p := range list {
			saturated := (p.tf * (bm25K1 + 1.0)) / (p.tf + bm25K1)
			scores[p.chunk] += idf * saturated
		}
	}
	if len(scores) == 0 {
		return nil
	}

	out := make([]domain.ScoredChunk, 0, len(scores))
	for i, score := range scores {
		out = append(out, domain.ScoredChunk{Chunk: ix.chunks[i], Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Chunk.Source != out[j].Chunk.Source {
			return out[i].Chunk.Source < out[j].Chunk.Source
		}
		return out[i].Chunk.Key() < out[j].Chunk.Key()
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Tokenize lowercases and splits on any rune outside [a-z0-9].
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
