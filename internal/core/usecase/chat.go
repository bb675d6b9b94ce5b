package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/docuchat/internal/core/domain"
	"github.com/kirillkom/docuchat/internal/core/ports"
)

// Fixed user-facing texts. Substituted verbatim; the sanitized text, never
// raw model output, is what gets persisted.
const (
	RefusalText = "I cannot verify one or more citations in my draft answer against the retrieved sources, so I am withholding it. Please rephrase the question and try again."

	InsufficientText = "I do not have enough information in the selected documents to answer that."

	RetryText = "The answer service is temporarily unavailable. Please try again in a moment."
)

// Directive prefixes short-circuit the turn: no retrieval, no citation
// requirement.
const (
	directiveRemember   = "remember:"
	directiveSession    = "session:"
	directivePersona    = "persona:"
	directiveBackground = "background:"
)

type ChatConfig struct {
	TopK           int
	LLMTimeout     time.Duration
	SummaryTimeout time.Duration
}

func (c ChatConfig) normalize() ChatConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.LLMTimeout <= 0 {
		out.LLMTimeout = 60 * time.Second
	}
	if out.SummaryTimeout <= 0 {
		out.SummaryTimeout = 30 * time.Second
	}
	return out
}

// ChatOrchestrator runs one turn: directive check, hybrid retrieval, citation
// assignment, model call, citation validation, persistence. Every fault is
// handled here; the worst outcome a caller observes is a deterministic
// refusal or retry message, never a crash or a silently wrong answer.
type ChatOrchestrator struct {
	retriever *HybridRetriever
	llm       ports.CompletionModel
	sessions  *SessionManager
	store     ports.ConversationStore
	cfg       ChatConfig
	logger    *slog.Logger
}

func NewChatOrchestrator(
	retriever *HybridRetriever,
	llm ports.CompletionModel,
	sessions *SessionManager,
	store ports.ConversationStore,
	cfg ChatConfig,
	logger *slog.Logger,
) *ChatOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatOrchestrator{
		retriever: retriever,
		llm:       llm,
		sessions:  sessions,
		store:     store,
		cfg:       cfg.normalize(),
		logger:    logger,
	}
}

func (o *ChatOrchestrator) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat complete", fmt.Errorf("message is required"))
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = o.sessions.NewID()
	}

	session, release := o.sessions.Acquire(sessionID, strings.TrimSpace(req.Scope))
	defer release()
	session.LastActivityAt = time.Now().UTC()

	if o.store != nil {
		if err := o.store.EnsureSession(ctx, session.ID, session.Scope); err != nil {
			return nil, fmt.Errorf("ensure session: %w", err)
		}
	}

	if ack, handled := o.applyDirective(session, message); handled {
		if err := o.persistTurn(ctx, session, message, ack, domain.OutcomeDirective); err != nil {
			return nil, err
		}
		return &domain.ChatResult{
			SessionID: session.ID,
			Answer:    ack,
			Outcome:   domain.OutcomeDirective,
		}, nil
	}

	results, retrieveErr := o.retriever.Retrieve(ctx, message, session.Scope, req.AllowList, o.pickLimit(req.Limit))
	switch {
	case retrieveErr == nil:
	case domain.IsKind(retrieveErr, domain.ErrRetrievalUnavailable):
		results = nil
	case domain.IsKind(retrieveErr, domain.ErrTemporary):
		// Embedding provider exhausted its retry; answer with the fixed
		// recoverable message instead of surfacing a fault.
		return o.finishTurn(ctx, session, message, RetryText, domain.OutcomeRetryable, nil)
	default:
		return nil, fmt.Errorf("retrieve: %w", retrieveErr)
	}

	if len(results) == 0 && !session.HasFacts() {
		o.logger.Info("chat_insufficient",
			"session_id", session.ID,
			"cause", insufficientCause(retrieveErr, req.AllowList),
		)
		return o.finishTurn(ctx, session, message, InsufficientText, domain.OutcomeInsufficient, nil)
	}

	sources := assignCitations(session.Citations, results)
	messages := buildChatMessages(session, results, sources, message)

	raw, err := o.completeWithTimeout(ctx, messages)
	if err != nil {
		o.logger.Warn("chat_llm_failed", "session_id", session.ID, "error", err)
		return o.finishTurn(ctx, session, message, RetryText, domain.OutcomeRetryable, nil)
	}

	report := session.Citations.Validate(raw)
	if !report.Valid() {
		rejectErr := domain.WrapError(domain.ErrCitationInvalid, "validate answer",
			fmt.Errorf("unknown ids %v, empty marker %t", report.Unknown, report.EmptyMarker))
		o.logger.Warn("chat_citation_rejected", "session_id", session.ID, "error", rejectErr)
		return o.finishTurn(ctx, session, message, RefusalText, domain.OutcomeRefused, nil)
	}

	cited := citedSubset(sources, report.Cited)
	result, err := o.finishTurn(ctx, session, message, raw, domain.OutcomeAnswered, cited)
	if err != nil {
		return nil, err
	}
	result.Retrieved = results
	return result, nil
}

// Reset destroys the session's registry, memory, and facts, and removes its
// persisted turns.
func (o *ChatOrchestrator) Reset(ctx context.Context, sessionID string) error {
	if err := o.sessions.Reset(sessionID); err != nil {
		return err
	}
	if o.store != nil {
		if err := o.store.DeleteSession(ctx, sessionID); err != nil {
			return fmt.Errorf("delete persisted session: %w", err)
		}
	}
	return nil
}

func (o *ChatOrchestrator) pickLimit(requested int) int {
	if requested > 0 {
		return requested
	}
	return o.cfg.TopK
}

func (o *ChatOrchestrator) applyDirective(session *domain.Session, message string) (string, bool) {
	lower := strings.ToLower(message)
	switch {
	case strings.HasPrefix(lower, directiveRemember):
		fact := strings.TrimSpace(message[len(directiveRemember):])
		if fact == "" {
			return "Nothing to remember; the fact was empty.", true
		}
		session.PermanentFacts = append(session.PermanentFacts, fact)
		return "Noted. I will remember that.", true
	case strings.HasPrefix(lower, directiveSession):
		fact := strings.TrimSpace(message[len(directiveSession):])
		if fact == "" {
			return "Nothing to note; the fact was empty.", true
		}
		session.SessionFacts = append(session.SessionFacts, fact)
		return "Noted for this session only.", true
	case strings.HasPrefix(lower, directivePersona):
		session.Persona = strings.TrimSpace(message[len(directivePersona):])
		if session.Persona == "" {
			return "Persona cleared.", true
		}
		return "Persona updated.", true
	case strings.HasPrefix(lower, directiveBackground):
		arg := strings.TrimSpace(strings.ToLower(message[len(directiveBackground):]))
		switch arg {
		case "on":
			session.UncitedBackground = true
			return "Background knowledge mode is on. Uncited general knowledge is now allowed.", true
		case "off":
			session.UncitedBackground = false
			return "Background knowledge mode is off. Answers are restricted to cited sources.", true
		default:
			return "Use 'background: on' or 'background: off'.", true
		}
	default:
		return "", false
	}
}

func (o *ChatOrchestrator) completeWithTimeout(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	llmCtx, cancel := context.WithTimeout(ctx, o.cfg.LLMTimeout)
	defer cancel()
	raw, err := o.llm.Complete(llmCtx, messages)
	if err != nil {
		return "", err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("model returned empty answer")
	}
	return raw, nil
}

// finishTurn persists the exchange the user actually saw, including after a
// refusal or a retry substitution, then builds the result.
func (o *ChatOrchestrator) finishTurn(
	ctx context.Context,
	session *domain.Session,
	userText, finalText, outcome string,
	sources []domain.CitedSource,
) (*domain.ChatResult, error) {
	if err := o.persistTurn(ctx, session, userText, finalText, outcome); err != nil {
		return nil, err
	}
	return &domain.ChatResult{
		SessionID: session.ID,
		Answer:    finalText,
		Sources:   sources,
		Outcome:   outcome,
	}, nil
}

func (o *ChatOrchestrator) persistTurn(ctx context.Context, session *domain.Session, userText, finalText, outcome string) error {
	if err := session.Memory.SaveTurn(ctx, userText, finalText, o.summarizer()); err != nil {
		// The window stays uncompressed and compaction retries next turn; no
		// turn is lost, so the failure never aborts the exchange.
		o.logger.Warn("memory_compaction_failed", "session_id", session.ID, "error", err)
	}

	if o.store == nil {
		return nil
	}
	now := time.Now().UTC()
	if err := o.store.AppendTurn(ctx, session.ID, domain.ConversationTurn{
		Role: domain.RoleUser, Content: userText, CreatedAt: now,
	}, outcome); err != nil {
		return fmt.Errorf("append user turn: %w", err)
	}
	if err := o.store.AppendTurn(ctx, session.ID, domain.ConversationTurn{
		Role: domain.RoleAssistant, Content: finalText, CreatedAt: now,
	}, outcome); err != nil {
		return fmt.Errorf("append assistant turn: %w", err)
	}
	return nil
}

func (o *ChatOrchestrator) summarizer() domain.SummarizeFunc {
	return func(ctx context.Context, priorSummary string, evicted []domain.ConversationTurn) (string, error) {
		summaryCtx, cancel := context.WithTimeout(ctx, o.cfg.SummaryTimeout)
		defer cancel()
		return o.llm.Complete(summaryCtx, buildSummaryMessages(priorSummary, evicted))
	}
}

// insufficientCause picks the internal cause behind an "insufficient
// information" turn. All three yield the same user-facing text.
func insufficientCause(retrieveErr error, allow domain.AllowList) error {
	switch {
	case domain.IsKind(retrieveErr, domain.ErrRetrievalUnavailable):
		return domain.ErrRetrievalUnavailable
	case allow.Restricted():
		return domain.ErrScopeExhausted
	default:
		return errNoMaterial
	}
}

var errNoMaterial = errors.New("no indexed material")

// assignCitations walks results in rank order so first-seen id assignment
// follows retrieval rank, and returns one entry per result aligned by index.
func assignCitations(registry *domain.CitationRegistry, results []domain.RetrievalResult) []domain.CitedSource {
	out := make([]domain.CitedSource, 0, len(results))
	for _, res := range results {
		id := registry.Assign(res.Chunk.Source, res.Chunk.Page)
		out = append(out, domain.CitedSource{
			ID:     id,
			Source: res.Chunk.Source,
			Page:   res.Chunk.Page,
		})
	}
	return out
}

func citedSubset(sources []domain.CitedSource, cited []int) []domain.CitedSource {
	if len(cited) == 0 {
		return nil
	}
	referenced := make(map[int]struct{}, len(cited))
	for _, id := range cited {
		referenced[id] = struct{}{}
	}
	seen := make(map[int]struct{}, len(sources))
	out := make([]domain.CitedSource, 0, len(cited))
	for _, src := range sources {
		if _, ok := referenced[src.ID]; !ok {
			continue
		}
		if _, dup := seen[src.ID]; dup {
			continue
		}
		seen[src.ID] = struct{}{}
		out = append(out, src)
	}
	return out
}
