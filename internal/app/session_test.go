package app

import (
	"context"
	"errors"
	"testing"

	"github.com/hylla/tavla/internal/domain"
)

func TestOpenSessionLoadsUserThenBoards(t *testing.T) {
	src := fakeSource{
		user: domain.User{ID: "u1", Username: "ada"},
		boards: []domain.Board{
			{ID: "b1", Name: "Mine", UserID: "u1", Tasks: []domain.Task{{ID: 5, Name: "x"}}},
			{ID: "b2", Name: "Theirs", UserID: "u2"},
		},
	}
	s, err := OpenSession(context.Background(), src, nil, &recordingDispatcher{}, "ada")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	if s.User().ID != "u1" {
		t.Fatalf("unexpected user %#v", s.User())
	}
	boards := s.Boards().Boards()
	if len(boards) != 1 || boards[0].ID != "b1" {
		t.Fatalf("unexpected boards %#v", boards)
	}

	if _, err := OpenSession(context.Background(), src, nil, nil, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("OpenSession(unknown) error = %v", err)
	}
	if _, err := OpenSession(context.Background(), src, nil, nil, " "); !errors.Is(err, domain.ErrInvalidUsername) {
		t.Fatalf("OpenSession(blank) error = %v", err)
	}
}

func TestSessionOpenAndCloseBoardWritesBack(t *testing.T) {
	src := fakeSource{
		user:   domain.User{ID: "u1", Username: "ada"},
		boards: []domain.Board{{ID: "b1", Name: "Mine", UserID: "u1", Tasks: []domain.Task{{ID: 5, Name: "x"}}}},
	}
	d := &recordingDispatcher{}
	s, err := OpenSession(context.Background(), src, nil, d, "ada")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	if _, err := s.Active(); !errors.Is(err, ErrNoBoardOpen) {
		t.Fatalf("Active() error = %v", err)
	}
	if _, err := s.OpenBoard("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("OpenBoard(missing) error = %v", err)
	}
	tasks, err := s.OpenBoard("b1")
	if err != nil {
		t.Fatalf("OpenBoard() error = %v", err)
	}
	task, err := tasks.AddTask(context.Background(), "y")
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if task.ID <= 5 {
		t.Fatalf("expected id above existing ids, got %d", task.ID)
	}
	if err := tasks.CompleteTask(context.Background(), 5); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	s.CloseBoard()

	b, _ := s.Boards().Board("b1")
	if len(b.Tasks) != 2 || b.CompletedCount() != 1 {
		t.Fatalf("expected write-back, got %#v", b)
	}
	if _, err := s.Active(); !errors.Is(err, ErrNoBoardOpen) {
		t.Fatalf("Active() after close error = %v", err)
	}
}
