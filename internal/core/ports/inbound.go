package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docuchat/internal/core/domain"
)

// ChatService is the inbound contract for one conversational turn.
type ChatService interface {
	Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error)
}

// SessionControl resets or inspects per-session state.
type SessionControl interface {
	Reset(ctx context.Context, sessionID string) error
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType, scope string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous indexing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
