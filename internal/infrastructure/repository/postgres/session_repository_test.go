package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/docuchat/internal/core/domain"
)

func newSessionRepoWithMock(t *testing.T) (*SessionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &SessionRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestEnsureSessionUpsertsOnConflict(t *testing.T) {
	repo, mock, done := newSessionRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("s-1", "workspace", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.EnsureSession(context.Background(), "s-1", "workspace"); err != nil {
		t.Fatalf("EnsureSession() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendTurnFillsTimestamp(t *testing.T) {
	repo, mock, done := newSessionRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO session_turns").
		WithArgs("s-1", domain.RoleUser, "hello", domain.OutcomeAnswered, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.AppendTurn(context.Background(), "s-1", domain.ConversationTurn{
		Role:    domain.RoleUser,
		Content: "hello",
	}, domain.OutcomeAnswered)
	if err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListTurnsReversesToChronologicalOrder(t *testing.T) {
	repo, mock, done := newSessionRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"role", "content", "created_at"}).
		AddRow(domain.RoleAssistant, "second answer", time.Now()).
		AddRow(domain.RoleUser, "second question", time.Now()).
		AddRow(domain.RoleAssistant, "first answer", time.Now()).
		AddRow(domain.RoleUser, "first question", time.Now())

	mock.ExpectQuery("SELECT role, content, created_at").
		WithArgs("s-1", 4).
		WillReturnRows(rows)

	turns, err := repo.ListTurns(context.Background(), "s-1", 4)
	if err != nil {
		t.Fatalf("ListTurns() error = %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	if turns[0].Content != "first question" || turns[3].Content != "second answer" {
		t.Fatalf("turns not chronological: %+v", turns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
