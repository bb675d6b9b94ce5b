package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docuchat/internal/config"
	"github.com/kirillkom/docuchat/internal/core/ports"
	"github.com/kirillkom/docuchat/internal/core/usecase"
	"github.com/kirillkom/docuchat/internal/infrastructure/chunking"
	"github.com/kirillkom/docuchat/internal/infrastructure/extractor"
	"github.com/kirillkom/docuchat/internal/infrastructure/extractor/excel"
	"github.com/kirillkom/docuchat/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/docuchat/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/docuchat/internal/infrastructure/lexical"
	"github.com/kirillkom/docuchat/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docuchat/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docuchat/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docuchat/internal/infrastructure/resilience"
	"github.com/kirillkom/docuchat/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docuchat/internal/infrastructure/vector/memvec"
	"github.com/kirillkom/docuchat/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.MessageQueue
	Repo     ports.DocumentRepository
	Sessions *usecase.SessionManager

	Chat      *usecase.ChatOrchestrator
	IngestUC  *usecase.IngestDocumentUseCase
	ProcessUC ports.DocumentProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	sessionStore := postgres.NewSessionRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)

	var vectorDB ports.VectorSearcher
	if cfg.VectorBackend == "memory" {
		vectorDB = memvec.NewStore()
	} else {
		vectorDB = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	}

	lexicalRegistry := lexical.NewRegistry()
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewDispatcher(
		plaintext.NewExtractor(storage),
		pdf.NewExtractor(storage),
		excel.NewExtractor(storage),
	)

	retriever := usecase.NewHybridRetriever(embedder, vectorDB, lexicalRegistry, usecase.RetrieverConfig{
		VectorWeight:  cfg.RetrievalVectorWeight,
		LexicalWeight: cfg.RetrievalLexicalWeight,
		OverFetch:     cfg.RetrievalOverFetch,
	})
	sessions := usecase.NewSessionManager(cfg.MemoryWindow)
	chat := usecase.NewChatOrchestrator(retriever, ollamaClient, sessions, sessionStore, usecase.ChatConfig{
		TopK:           cfg.RetrievalTopK,
		LLMTimeout:     time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
		SummaryTimeout: time.Duration(cfg.SummaryTimeoutSeconds) * time.Second,
	}, logger)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extract, chunker, embedder, vectorDB, lexicalRegistry, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		Repo:     repo,
		Sessions: sessions,

		Chat:      chat,
		IngestUC:  ingestUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
