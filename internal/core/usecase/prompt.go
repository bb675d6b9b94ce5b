package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/docuchat/internal/core/domain"
)

const citedRules = `You are a document assistant. Answer the user's question using only the numbered source excerpts and the stored facts below.
Rules:
- Mark every factual claim with the citation of the excerpt it came from, written exactly as [#N] where N is the excerpt number.
- Only use citation numbers that appear in the excerpt list. Never invent a number.
- If the excerpts and facts do not contain the answer, say that you do not have enough information. Do not guess.`

const backgroundRules = `You are a document assistant. Answer the user's question using the numbered source excerpts and the stored facts below, supplemented by general background knowledge where helpful.
Rules:
- Mark claims taken from an excerpt with its citation, written exactly as [#N] where N is the excerpt number.
- Statements from general background knowledge carry no citation marker.
- Only use citation numbers that appear in the excerpt list. Never invent a number.`

const summaryRules = `You maintain a rolling summary of a conversation. Produce an updated summary that merges the previous summary with the removed turns listed below.
Cover only the previous summary and the removed turns. Do not mention or anticipate anything outside them. Reply with the summary text only.`

// buildChatMessages assembles the model input in a fixed order: rules and
// persona, stored facts, the rolling summary, the recent window, the
// numbered excerpts, and finally the query.
func buildChatMessages(session *domain.Session, results []domain.RetrievalResult, sources []domain.CitedSource, query string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(session.Memory.Context())+5)

	rules := citedRules
	if session.UncitedBackground {
		rules = backgroundRules
	}
	if persona := strings.TrimSpace(session.Persona); persona != "" {
		rules += "\n\nAdopt this persona in your replies: " + persona
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: rules})

	if facts := renderFacts(session); facts != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: facts})
	}

	for _, turn := range session.Memory.Context() {
		messages = append(messages, domain.ChatMessage{Role: turn.Role, Content: turn.Content})
	}

	if block := renderContext(results, sources); block != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: block})
	}

	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: query})
	return messages
}

func renderFacts(session *domain.Session) string {
	var b strings.Builder
	if len(session.PermanentFacts) > 0 {
		b.WriteString("Facts the user asked you to remember:\n")
		for _, fact := range session.PermanentFacts {
			b.WriteString("- ")
			b.WriteString(fact)
			b.WriteByte('\n')
		}
	}
	if len(session.SessionFacts) > 0 {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("Facts for this session only:\n")
		for _, fact := range session.SessionFacts {
			b.WriteString("- ")
			b.WriteString(fact)
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderContext writes one excerpt per retrieval result, labeled with the
// citation id the validator will accept. sources is index-aligned with
// results.
func renderContext(results []domain.RetrievalResult, sources []domain.CitedSource) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Source excerpts:\n")
	for i, res := range results {
		fmt.Fprintf(&b, "\n[#%d] %s (page %d)\n%s\n", sources[i].ID, res.Chunk.Source, res.Chunk.Page, strings.TrimSpace(res.Chunk.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildSummaryMessages(priorSummary string, evicted []domain.ConversationTurn) []domain.ChatMessage {
	var b strings.Builder
	if prior := strings.TrimSpace(priorSummary); prior != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(prior)
		b.WriteString("\n\n")
	} else {
		b.WriteString("Previous summary: (none)\n\n")
	}
	b.WriteString("Removed turns:\n")
	for _, turn := range evicted {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: summaryRules},
		{Role: domain.RoleUser, Content: strings.TrimRight(b.String(), "\n")},
	}
}
