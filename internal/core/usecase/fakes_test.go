package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/docuchat/internal/core/domain"
)

type fakeEmbedder struct {
	queryVector []float32
	err         error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), f.queryVector...)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.queryVector, nil
}

type fakeDense struct {
	hits    []domain.ScoredChunk
	err     error
	indexed [][]domain.Chunk
}

func (f *fakeDense) IndexChunks(_ context.Context, _ string, chunks []domain.Chunk, _ [][]float32) error {
	f.indexed = append(f.indexed, chunks)
	return f.err
}

func (f *fakeDense) Search(_ context.Context, _ string, _ []float32, limit int) ([]domain.ScoredChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

type fakeSparse struct {
	hits   []domain.ScoredChunk
	err    error
	scopes []string
}

func (f *fakeSparse) Search(_ context.Context, scope, _ string, limit int) ([]domain.ScoredChunk, error) {
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

// fakeLLM replies with the queued answers in order and repeats the last one
// when the queue runs dry.
type fakeLLM struct {
	answers  []string
	err      error
	calls    int
	received [][]domain.ChatMessage
}

func (f *fakeLLM) Complete(_ context.Context, messages []domain.ChatMessage) (string, error) {
	f.calls++
	f.received = append(f.received, messages)
	if f.err != nil {
		return "", f.err
	}
	if len(f.answers) == 0 {
		return "", fmt.Errorf("no scripted answer")
	}
	answer := f.answers[0]
	if len(f.answers) > 1 {
		f.answers = f.answers[1:]
	}
	return answer, nil
}

type storedTurn struct {
	sessionID string
	turn      domain.ConversationTurn
	outcome   string
}

type fakeStore struct {
	mu        sync.Mutex
	ensured   []string
	turns     []storedTurn
	deleted   []string
	appendErr error
}

func (f *fakeStore) EnsureSession(_ context.Context, sessionID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, sessionID)
	return nil
}

func (f *fakeStore) AppendTurn(_ context.Context, sessionID string, turn domain.ConversationTurn, outcome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns = append(f.turns, storedTurn{sessionID: sessionID, turn: turn, outcome: outcome})
	return nil
}

func (f *fakeStore) DeleteSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, sessionID)
	return nil
}

type fakeDocumentRepo struct {
	mu       sync.Mutex
	docs     map[string]*domain.Document
	statuses []domain.DocumentStatus
	counts   [][2]int
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: make(map[string]*domain.Document)}
}

func (f *fakeDocumentRepo) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *doc
	f.docs[doc.ID] = &copied
	return nil
}

func (f *fakeDocumentRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocumentRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if doc, ok := f.docs[id]; ok {
		doc.Status = status
		doc.Error = errMessage
	}
	return nil
}

func (f *fakeDocumentRepo) UpdateCounts(_ context.Context, id string, pages, chunks int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, [2]int{pages, chunks})
	if doc, ok := f.docs[id]; ok {
		doc.Pages = pages
		doc.Chunks = chunks
	}
	return nil
}

type fakeObjectStorage struct {
	saved map[string][]byte
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{saved: make(map[string][]byte)}
}

func (f *fakeObjectStorage) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = raw
	return nil
}

func (f *fakeObjectStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.saved[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type fakeQueue struct {
	published []string
	err       error
}

func (f *fakeQueue) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *fakeQueue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	for _, id := range f.published {
		if err := handler(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

type fakeExtractor struct {
	pages []domain.PageText
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, _ *domain.Document) ([]domain.PageText, error) {
	return f.pages, f.err
}

type fakeChunker struct{}

func (fakeChunker) Split(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

type fakeLexicalIndexer struct {
	mu        sync.Mutex
	gen       uint64
	corpus    map[string][]domain.Chunk
	installed int
}

func newFakeLexicalIndexer() *fakeLexicalIndexer {
	return &fakeLexicalIndexer{corpus: make(map[string][]domain.Chunk)}
}

func (f *fakeLexicalIndexer) Begin(_ string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	return f.gen
}

func (f *fakeLexicalIndexer) Corpus(scope string) []domain.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Chunk(nil), f.corpus[scope]...)
}

func (f *fakeLexicalIndexer) InstallCorpus(scope string, gen uint64, chunks []domain.Chunk) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return false
	}
	f.corpus[scope] = chunks
	f.installed++
	return true
}
