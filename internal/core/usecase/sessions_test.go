package usecase

import (
	"sync"
	"testing"

	"github.com/kirillkom/docuchat/internal/core/domain"
)

func TestAcquireCreatesSessionOnce(t *testing.T) {
	m := NewSessionManager(domain.DefaultMemoryWindow)

	first, release := m.Acquire("s-1", "ws")
	first.PermanentFacts = append(first.PermanentFacts, "fact")
	release()

	second, release := m.Acquire("s-1", "ws")
	release()
	if len(second.PermanentFacts) != 1 {
		t.Fatalf("expected same session instance on reacquire")
	}

	// An empty requested scope keeps the live session.
	third, release := m.Acquire("s-1", "")
	defer release()
	if len(third.PermanentFacts) != 1 || third.Scope != "ws" {
		t.Fatalf("empty scope replaced the session: scope=%s facts=%d", third.Scope, len(third.PermanentFacts))
	}
}

func TestAcquireScopeSwitchStartsSessionOver(t *testing.T) {
	m := NewSessionManager(domain.DefaultMemoryWindow)

	session, release := m.Acquire("s-1", "alpha")
	session.PermanentFacts = append(session.PermanentFacts, "likes tea")
	session.Citations.Assign("a.pdf", 1)
	release()

	switched, release := m.Acquire("s-1", "beta")
	release()
	if switched.Scope != "beta" {
		t.Fatalf("scope = %s, want beta", switched.Scope)
	}
	if len(switched.PermanentFacts) != 0 || switched.Citations.Len() != 0 {
		t.Fatalf("state carried across collections: facts=%d citations=%d",
			len(switched.PermanentFacts), switched.Citations.Len())
	}

	// State accumulated after the switch survives an empty-scope reacquire.
	switched, release = m.Acquire("s-1", "")
	defer release()
	if switched.Scope != "beta" {
		t.Fatalf("scope = %s after empty reacquire, want beta", switched.Scope)
	}
}

// Citation ids are scoped to one session: the same chunk cited from two live
// sessions gets each session's own first-seen id.
func TestSessionsAssignCitationIdsIndependently(t *testing.T) {
	m := NewSessionManager(domain.DefaultMemoryWindow)

	a, releaseA := m.Acquire("s-a", "ws")
	defer releaseA()
	b, releaseB := m.Acquire("s-b", "ws")
	defer releaseB()

	a.Citations.Assign("intro.pdf", 1)
	a.Citations.Assign("intro.pdf", 2)
	if got := b.Citations.Assign("intro.pdf", 2); got != 1 {
		t.Fatalf("second session assigned id %d for its first chunk, want 1", got)
	}
	if got := a.Citations.Assign("intro.pdf", 2); got != 2 {
		t.Fatalf("first session lost its assignment: id %d, want 2", got)
	}
}

func TestTurnsOnOneSessionAreSerialized(t *testing.T) {
	m := NewSessionManager(domain.DefaultMemoryWindow)

	const turns = 50
	var wg sync.WaitGroup
	for range turns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, release := m.Acquire("s-1", "ws")
			defer release()
			// Unsynchronized append; only turn serialization keeps it safe.
			session.SessionFacts = append(session.SessionFacts, "x")
		}()
	}
	wg.Wait()

	session, release := m.Acquire("s-1", "ws")
	defer release()
	if len(session.SessionFacts) != turns {
		t.Fatalf("lost updates: %d/%d", len(session.SessionFacts), turns)
	}
}

func TestResetUnknownSession(t *testing.T) {
	m := NewSessionManager(domain.DefaultMemoryWindow)
	if err := m.Reset("nope"); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestResetRemovesSession(t *testing.T) {
	m := NewSessionManager(domain.DefaultMemoryWindow)
	_, release := m.Acquire("s-1", "ws")
	release()

	if err := m.Reset("s-1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("session still live after reset")
	}

	fresh, release := m.Acquire("s-1", "ws")
	defer release()
	if fresh.Citations.Len() != 0 || len(fresh.Memory.Window()) != 0 {
		t.Fatalf("reacquired session carries old state")
	}
}
