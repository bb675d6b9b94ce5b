package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const DefaultMemoryWindow = 8

// ConversationTurn is one verbatim utterance of an exchange.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// SummarizeFunc compresses already-evicted turns into a rolling summary. The
// prior summary is passed so the new one can absorb it; implementations must
// instruct the model to cover only the supplied turns, never the live window.
type SummarizeFunc func(ctx context.Context, priorSummary string, evicted []ConversationTurn) (string, error)

// ConversationMemory is the two-tier per-session store: a bounded verbatim
// window for exact short-term recall, and a compressed summary describing
// only turns already evicted from the window. The tiers never overlap.
type ConversationMemory struct {
	window   []ConversationTurn
	summary  string
	capacity int
}

func NewConversationMemory(capacity int) *ConversationMemory {
	if capacity <= 0 {
		capacity = DefaultMemoryWindow
	}
	return &ConversationMemory{capacity: capacity}
}

// Window returns the verbatim recent turns in chronological order.
func (m *ConversationMemory) Window() []ConversationTurn {
	out := make([]ConversationTurn, len(m.window))
	copy(out, m.window)
	return out
}

// Summary returns the compressed long-term tier.
func (m *ConversationMemory) Summary() string {
	return m.summary
}

// SaveTurn appends the user and assistant turns of one exchange, then
// compacts if the window overflowed. On summarization failure the window is
// left over capacity rather than dropping turns; compaction retries on the
// next save. The returned error is always of kind ErrSummarization and the
// turns are saved regardless.
func (m *ConversationMemory) SaveTurn(ctx context.Context, userText, assistantText string, summarize SummarizeFunc) error {
	now := time.Now().UTC()
	m.window = append(m.window,
		ConversationTurn{Role: RoleUser, Content: userText, CreatedAt: now},
		ConversationTurn{Role: RoleAssistant, Content: assistantText, CreatedAt: now},
	)
	if len(m.window) <= m.capacity {
		return nil
	}

	excess := len(m.window) - m.capacity
	evicted := make([]ConversationTurn, excess)
	copy(evicted, m.window[:excess])

	if summarize == nil {
		return WrapError(ErrSummarization, "compact memory", fmt.Errorf("no summarizer configured"))
	}
	updated, err := summarize(ctx, m.summary, evicted)
	if err != nil {
		return WrapError(ErrSummarization, "compact memory", err)
	}
	updated = strings.TrimSpace(updated)
	if updated == "" {
		return WrapError(ErrSummarization, "compact memory", fmt.Errorf("summarizer returned empty text"))
	}

	m.summary = updated
	m.window = append(m.window[:0], m.window[excess:]...)
	return nil
}

// Context returns the prompt-ready memory: the summary (when non-empty)
// first, then the window turns in chronological order, so the most recent
// turns sit nearest the query.
func (m *ConversationMemory) Context() []ConversationTurn {
	out := make([]ConversationTurn, 0, len(m.window)+1)
	if m.summary != "" {
		out = append(out, ConversationTurn{Role: RoleSystem, Content: "Earlier conversation summary: " + m.summary})
	}
	out = append(out, m.window...)
	return out
}
