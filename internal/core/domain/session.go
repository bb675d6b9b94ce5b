package domain

import "time"

// Session carries all per-conversation state explicitly: one citation
// registry, one two-tier memory, a persona, and the stored facts. There is no
// ambient/global session state anywhere in the engine; every call that needs
// session state receives this value.
type Session struct {
	ID    string `json:"id"`
	Scope string `json:"scope"`

	Persona           string   `json:"persona,omitempty"`
	PermanentFacts    []string `json:"permanent_facts,omitempty"`
	SessionFacts      []string `json:"session_facts,omitempty"`
	UncitedBackground bool     `json:"uncited_background"`

	Citations *CitationRegistry   `json:"-"`
	Memory    *ConversationMemory `json:"-"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

func NewSession(id, scope string, memoryWindow int) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:             id,
		Scope:          scope,
		Citations:      NewCitationRegistry(),
		Memory:         NewConversationMemory(memoryWindow),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// HasFacts reports whether any stored facts exist. With no facts and no
// retrieved material there is nothing to ground an answer on.
func (s *Session) HasFacts() bool {
	return len(s.PermanentFacts) > 0 || len(s.SessionFacts) > 0
}

// ChatRequest is one inbound user turn.
type ChatRequest struct {
	SessionID string    `json:"session_id,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	Message   string    `json:"message"`
	AllowList AllowList `json:"allowed_sources,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// ChatResult is the outcome of one completed turn. Answer is the sanitized
// text the user saw; it is also exactly what was persisted.
type ChatResult struct {
	SessionID string            `json:"session_id"`
	Answer    string            `json:"answer"`
	Sources   []CitedSource     `json:"sources,omitempty"`
	Outcome   string            `json:"outcome"`
	Retrieved []RetrievalResult `json:"-"`
}

// Turn outcomes, recorded for metrics and persisted audit rows.
const (
	OutcomeAnswered     = "answered"
	OutcomeDirective    = "directive"
	OutcomeInsufficient = "insufficient"
	OutcomeRefused      = "refused"
	OutcomeRetryable    = "retryable"
)

// CitedSource pairs an assigned citation id with its origin.
type CitedSource struct {
	ID     int    `json:"id"`
	Source string `json:"source"`
	Page   int    `json:"page,omitempty"`
}

// ChatMessage is one entry of the ordered message list sent to the language
// model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
