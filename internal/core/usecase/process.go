package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/docuchat/internal/core/domain"
	"github.com/kirillkom/docuchat/internal/core/ports"
)

// ProcessDocumentUseCase runs the indexing pipeline for one uploaded
// document: extract pages, chunk, embed, index densely, then rebuild the
// scope's lexical index from the merged corpus. Both indices key chunks by
// source and page, so a reindexed document replaces its old entries.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorSearcher
	lexical   ports.LexicalIndexer
	logger    *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorSearcher,
	lexical ports.LexicalIndexer,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
		lexical:   lexical,
		logger:    logger,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	doc, pages, chunks, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateCounts(ctx, doc.ID, pages, chunks); err != nil {
		return fmt.Errorf("save document counts: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*domain.Document, int, int, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("fetch document by id: %w", err)
	}

	pages, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("extract text: %w", err)
	}
	chunks := uc.chunkPages(doc, pages)
	if len(chunks) == 0 {
		return nil, 0, 0, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("no text in document"))
	}

	vectors, err := uc.embedChunks(ctx, chunks)
	if err != nil {
		return nil, 0, 0, err
	}

	if err := uc.vectorDB.IndexChunks(ctx, doc.Scope, chunks, vectors); err != nil {
		return nil, 0, 0, fmt.Errorf("index chunks in vector db: %w", err)
	}
	uc.rebuildLexical(doc, chunks)

	return doc, len(pages), len(chunks), nil
}

func (uc *ProcessDocumentUseCase) chunkPages(doc *domain.Document, pages []domain.PageText) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(pages))
	for _, page := range pages {
		for i, text := range uc.chunker.Split(page.Content) {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			chunks = append(chunks, domain.Chunk{
				ID:      fmt.Sprintf("%s:%d:%d", doc.Filename, page.Page, i),
				Source:  doc.Filename,
				Page:    page.Page,
				Content: text,
				Tokens:  len(strings.Fields(text)),
			})
		}
	}
	return chunks
}

func (uc *ProcessDocumentUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Content)
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

// rebuildLexical rebuilds the scope's index from the current corpus with this
// document's chunks replacing its previous ones. When two rebuilds race on
// one scope the later-started one wins and the stale build is discarded; a
// superseded document is picked up again on its next reindex.
func (uc *ProcessDocumentUseCase) rebuildLexical(doc *domain.Document, chunks []domain.Chunk) {
	gen := uc.lexical.Begin(doc.Scope)

	merged := make([]domain.Chunk, 0, len(chunks))
	for _, existing := range uc.lexical.Corpus(doc.Scope) {
		if existing.Source == doc.Filename {
			continue
		}
		merged = append(merged, existing)
	}
	merged = append(merged, chunks...)

	if !uc.lexical.InstallCorpus(doc.Scope, gen, merged) {
		uc.logger.Info("lexical_rebuild_superseded", "scope", doc.Scope, "document_id", doc.ID)
	}
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
