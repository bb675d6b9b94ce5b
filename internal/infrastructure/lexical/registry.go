package lexical

import (
	"context"
	"sync"

	"github.com/kirillkom/docuchat/internal/core/domain"
)

// Registry holds the live index per scope and coordinates rebuilds. Reads
// take the currently installed index; a rebuild constructs a fresh Index
// off-lock and installs it atomically, so readers never observe a half-built
// index. Rebuilds carry a generation number: when two rebuilds race on one
// scope, only the later-started one installs and the stale build is
// discarded.
type Registry struct {
	mu     sync.RWMutex
	live   map[string]*Index
	latest map[string]uint64
}

func NewRegistry() *Registry {
	return &Registry{
		live:   make(map[string]*Index),
		latest: make(map[string]uint64),
	}
}

// Begin reserves a rebuild generation for the scope.
func (r *Registry) Begin(scope string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[scope]++
	return r.latest[scope]
}

// Install swaps the scope's live index to ix, unless a newer rebuild has
// begun since gen was reserved. Reports whether the install took effect.
func (r *Registry) Install(scope string, gen uint64, ix *Index) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.latest[scope] {
		return false
	}
	r.live[scope] = ix
	return true
}

// Get returns the live index for the scope, if one has been installed.
func (r *Registry) Get(scope string) (*Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ix, ok := r.live[scope]
	return ix, ok
}

// Corpus returns a copy of the scope's currently indexed chunks, or nil when
// no index exists yet.
func (r *Registry) Corpus(scope string) []domain.Chunk {
	ix, ok := r.Get(scope)
	if !ok {
		return nil
	}
	return ix.Chunks()
}

// InstallCorpus builds a fresh index over the corpus and swaps it in,
// subject to the same generation check as Install. Building happens off-lock.
func (r *Registry) InstallCorpus(scope string, gen uint64, chunks []domain.Chunk) bool {
	return r.Install(scope, gen, Build(chunks))
}

// Drop removes the scope's live index, used when a scope is deleted.
func (r *Registry) Drop(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, scope)
}

// Search implements ports.LexicalSearcher. A scope without an index is a
// valid degraded state and returns no results and no error; the dense side
// still answers.
func (r *Registry) Search(_ context.Context, scope, query string, limit int) ([]domain.ScoredChunk, error) {
	ix, ok := r.Get(scope)
	if !ok {
		return nil, nil
	}
	return ix.Search(query, limit), nil
}
