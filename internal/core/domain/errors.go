package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// ErrRetrievalUnavailable means no index exists yet for the requested
	// scope. Not fatal; the orchestrator answers with the fixed
	// insufficient-information text.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrScopeExhausted means an allow-list was present but matched nothing.
	// Same user-facing outcome as ErrRetrievalUnavailable, distinct cause.
	ErrScopeExhausted = errors.New("scope exhausted")

	// ErrCitationInvalid marks model output that referenced an id never
	// assigned this session, or an empty [#] marker.
	ErrCitationInvalid = errors.New("citation invalid")

	// ErrSummarization marks a failed summary regeneration. The window is
	// left uncompressed and compaction retried on the next turn.
	ErrSummarization = errors.New("summarization failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
