package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func fillTurns(t *testing.T, m *ConversationMemory, exchanges int, summarize SummarizeFunc) {
	t.Helper()
	for i := 0; i < exchanges; i++ {
		if err := m.SaveTurn(context.Background(), fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), summarize); err != nil {
			t.Fatalf("SaveTurn(%d) error = %v", i, err)
		}
	}
}

func TestWindowHoldsUpToCapacityWithoutSummary(t *testing.T) {
	m := NewConversationMemory(8)
	fillTurns(t, m, 4, nil)

	if got := len(m.Window()); got != 8 {
		t.Fatalf("window = %d turns, want 8", got)
	}
	if m.Summary() != "" {
		t.Fatalf("no summary expected before eviction, got %q", m.Summary())
	}
}

func TestCompactionSummarizesOnlyEvictedTurns(t *testing.T) {
	m := NewConversationMemory(4)

	var gotPrior string
	var gotEvicted []ConversationTurn
	summarize := func(_ context.Context, prior string, evicted []ConversationTurn) (string, error) {
		gotPrior = prior
		gotEvicted = append([]ConversationTurn(nil), evicted...)
		return "summary-1", nil
	}

	fillTurns(t, m, 3, summarize)

	if len(gotEvicted) != 2 {
		t.Fatalf("evicted %d turns, want the 2 oldest", len(gotEvicted))
	}
	if gotEvicted[0].Content != "q0" || gotEvicted[1].Content != "a0" {
		t.Fatalf("wrong turns evicted: %+v", gotEvicted)
	}
	if gotPrior != "" {
		t.Fatalf("first compaction must see empty prior summary, got %q", gotPrior)
	}
	if m.Summary() != "summary-1" {
		t.Fatalf("summary = %q", m.Summary())
	}

	window := m.Window()
	if len(window) != 4 {
		t.Fatalf("window = %d turns, want capacity 4", len(window))
	}
	for _, turn := range window {
		if turn.Content == "q0" || turn.Content == "a0" {
			t.Fatalf("evicted turn still in window")
		}
	}
}

func TestCompactionChainsPriorSummary(t *testing.T) {
	m := NewConversationMemory(2)

	var priors []string
	summarize := func(_ context.Context, prior string, _ []ConversationTurn) (string, error) {
		priors = append(priors, prior)
		return fmt.Sprintf("summary-%d", len(priors)), nil
	}

	fillTurns(t, m, 3, summarize)

	if len(priors) != 2 {
		t.Fatalf("expected 2 compactions, got %d", len(priors))
	}
	if priors[0] != "" || priors[1] != "summary-1" {
		t.Fatalf("prior summaries not chained: %v", priors)
	}
}

func TestSummarizationFailureKeepsWindowUncompressed(t *testing.T) {
	m := NewConversationMemory(2)
	failing := func(context.Context, string, []ConversationTurn) (string, error) {
		return "", errors.New("model down")
	}

	if err := m.SaveTurn(context.Background(), "q0", "a0", failing); err != nil {
		t.Fatalf("first save: %v", err)
	}
	err := m.SaveTurn(context.Background(), "q1", "a1", failing)
	if err == nil {
		t.Fatalf("expected summarization error")
	}
	if !IsKind(err, ErrSummarization) {
		t.Fatalf("expected ErrSummarization, got %v", err)
	}

	// Turns are saved regardless; the window runs over capacity instead of
	// dropping anything.
	if got := len(m.Window()); got != 4 {
		t.Fatalf("window = %d turns, want all 4 kept", got)
	}
	if m.Summary() != "" {
		t.Fatalf("summary must stay unchanged on failure")
	}

	// Compaction retries and catches up on the next successful save.
	working := func(context.Context, string, []ConversationTurn) (string, error) {
		return "caught up", nil
	}
	if err := m.SaveTurn(context.Background(), "q2", "a2", working); err != nil {
		t.Fatalf("recovery save: %v", err)
	}
	if len(m.Window()) != 2 || m.Summary() != "caught up" {
		t.Fatalf("recovery failed: window=%d summary=%q", len(m.Window()), m.Summary())
	}
}

func TestContextPutsSummaryBeforeWindow(t *testing.T) {
	m := NewConversationMemory(2)
	summarize := func(context.Context, string, []ConversationTurn) (string, error) {
		return "older turns compressed", nil
	}
	fillTurns(t, m, 2, summarize)

	ctx := m.Context()
	if len(ctx) != 3 {
		t.Fatalf("context = %d entries", len(ctx))
	}
	if ctx[0].Role != RoleSystem || !strings.Contains(ctx[0].Content, "older turns compressed") {
		t.Fatalf("summary entry wrong: %+v", ctx[0])
	}
	if ctx[1].Content != "q1" || ctx[2].Content != "a1" {
		t.Fatalf("window entries wrong: %+v", ctx[1:])
	}
}
