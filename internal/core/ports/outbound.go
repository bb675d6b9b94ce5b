package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docuchat/internal/core/domain"
)

// Embedder builds vectors for chunks and query text. Corpus and queries must
// use the same embedding model; mixing models silently corrupts similarity
// ranking.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher is the dense half of hybrid retrieval. Search returns raw
// similarity scores; normalization happens in the retriever. A scope with no
// index yet yields domain.ErrRetrievalUnavailable.
type VectorSearcher interface {
	IndexChunks(ctx context.Context, scope string, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, scope string, queryVector []float32, limit int) ([]domain.ScoredChunk, error)
}

// LexicalSearcher is the sparse half. An empty or missing lexical index is a
// valid degraded state: Search returns no results and no error.
type LexicalSearcher interface {
	Search(ctx context.Context, scope, query string, limit int) ([]domain.ScoredChunk, error)
}

// LexicalIndexer coordinates full-corpus lexical rebuilds. Begin reserves a
// rebuild generation; InstallCorpus swaps in an index built from the corpus
// unless a later rebuild has begun for the scope since.
type LexicalIndexer interface {
	Begin(scope string) uint64
	Corpus(scope string) []domain.Chunk
	InstallCorpus(scope string, gen uint64, chunks []domain.Chunk) bool
}

// CompletionModel generates text from an ordered message list. Used for both
// chat answers and summary regeneration, with different system instructions.
type CompletionModel interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// TextExtractor extracts per-page plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) ([]domain.PageText, error)
}

// Chunker splits page text into bounded chunks.
type Chunker interface {
	Split(text string) []string
}

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	UpdateCounts(ctx context.Context, id string, pages, chunks int) error
}

// ConversationStore is the write-through audit of the exchanges users saw.
// In-memory session state stays authoritative during a session; the store
// survives restarts.
type ConversationStore interface {
	EnsureSession(ctx context.Context, sessionID, scope string) error
	AppendTurn(ctx context.Context, sessionID string, turn domain.ConversationTurn, outcome string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// ObjectStorage stores source documents as atomic units.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes reindex events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}
