package domain

import "strconv"

// Chunk is a bounded slice of a source document plus metadata. Chunks are
// immutable once indexed and replaced wholesale on reindex.
type Chunk struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Content string `json:"content"`
	Tokens  int    `json:"tokens"`
}

// Key identifies the chunk across both indices. Falls back to source:page
// when the chunk id is not stable across rebuilds.
func (c Chunk) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Source + ":" + strconv.Itoa(c.Page)
}

// RetrievalResult is one entry of a merged ranking, transient per query.
type RetrievalResult struct {
	Chunk         Chunk   `json:"chunk"`
	VectorScore   float64 `json:"vector_score,omitempty"`
	LexicalScore  float64 `json:"lexical_score,omitempty"`
	CombinedScore float64 `json:"combined_score"`
	Rank          int     `json:"rank"`
}

// ScoredChunk is a raw, single-source ranking entry as returned by a dense or
// sparse searcher before normalization.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// AllowList restricts retrieval to an explicit set of document sources.
// A nil AllowList means unrestricted; a non-nil empty one matches nothing.
// The two states are distinct and must never be collapsed.
type AllowList []string

// Restricted reports whether the list is present at all.
func (a AllowList) Restricted() bool {
	return a != nil
}

// Permits reports whether retrieval may return chunks from the given source.
func (a AllowList) Permits(source string) bool {
	if a == nil {
		return true
	}
	for _, allowed := range a {
		if allowed == source {
			return true
		}
	}
	return false
}
