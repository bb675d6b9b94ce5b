package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var (
	errModelBusy   = errors.New("model busy")
	errBadRequest  = errors.New("bad request")
	errIndexDown   = errors.New("index down")
	transientModel = func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errModelBusy), RecordFailure: true}
	}
)

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	}
}

func TestExecuteRecoversFromBusyModel(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	err := exec.Execute(context.Background(), "ollama.embed", func(context.Context) error {
		calls++
		if calls < 3 {
			return errModelBusy
		}
		return nil
	}, transientModel)
	if err != nil {
		t.Fatalf("expected success once the model freed up, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExecuteStopsWhenBudgetSpent(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	err := exec.Execute(context.Background(), "ollama.chat", func(context.Context) error {
		calls++
		return errModelBusy
	}, transientModel)
	if !errors.Is(err, errModelBusy) {
		t.Fatalf("expected the last model error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want the full attempt budget of 3", calls)
	}
}

func TestExecuteDoesNotRetryCallerMistakes(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	err := exec.Execute(context.Background(), "ollama.chat", func(context.Context) error {
		calls++
		return errBadRequest
	}, transientModel)
	if !errors.Is(err, errBadRequest) {
		t.Fatalf("expected the caller error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, a rejected request must not be replayed", calls)
	}
}

func TestExecuteAbandonsBackoffOnCancel(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryInitialBackoff = time.Minute
	cfg.RetryMaxBackoff = time.Minute
	exec := NewExecutor(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	err := exec.Execute(ctx, "ollama.embed", func(context.Context) error {
		calls++
		cancel()
		return errModelBusy
	}, transientModel)
	if !errors.Is(err, errModelBusy) {
		t.Fatalf("expected the model error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("backoff ignored cancellation, waited %v", elapsed)
	}
}

func TestExecuteOpensCircuitAfterRepeatedFaults(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = 50 * time.Millisecond
	cfg.BreakerHalfOpenMaxCalls = 1
	exec := NewExecutor(cfg)

	fault := func(error) ErrorClassification {
		return ErrorClassification{RecordFailure: true}
	}
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
			return errIndexDown
		}, fault)
		if !errors.Is(err, errIndexDown) {
			t.Fatalf("call %d: expected index error, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		t.Fatal("open circuit must not reach the backend")
		return nil
	}, fault)
	if !IsCircuitOpen(err) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected an open circuit, got %v", err)
	}
}

func TestBreakersAreScopedPerOperation(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	exec := NewExecutor(cfg)

	fault := func(error) ErrorClassification {
		return ErrorClassification{RecordFailure: true}
	}
	for i := 0; i < 3; i++ {
		exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
			return errIndexDown
		}, fault)
	}

	// A tripped search breaker must not block embedding calls.
	err := exec.Execute(context.Background(), "ollama.embed", func(context.Context) error {
		return nil
	}, fault)
	if err != nil {
		t.Fatalf("sibling operation blocked: %v", err)
	}
}
