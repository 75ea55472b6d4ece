package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "tavla.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestRepository_UserBoardTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	user, err := domain.NewUser("u1", "ada")
	if err != nil {
		t.Fatalf("NewUser() error = %v", err)
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	loadedUser, err := repo.GetUserByUsername(ctx, "ada")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if loadedUser != user {
		t.Fatalf("unexpected user %#v", loadedUser)
	}
	if _, err := repo.GetUserByUsername(ctx, "bob"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetUserByUsername(missing) error = %v", err)
	}

	for _, id := range []string{"b1", "b2"} {
		b, err := domain.NewBoard("Board "+id, "desc", user.ID)
		if err != nil {
			t.Fatalf("NewBoard() error = %v", err)
		}
		b.ID = id
		if id == "b1" {
			b.Tasks = []domain.Task{{ID: 10, Name: "seed"}}
		}
		if err := repo.CreateBoard(ctx, b); err != nil {
			t.Fatalf("CreateBoard() error = %v", err)
		}
	}

	boards, err := repo.ListBoards(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListBoards() error = %v", err)
	}
	if len(boards) != 2 || boards[0].ID != "b1" || boards[1].ID != "b2" {
		t.Fatalf("unexpected boards %#v", boards)
	}
	if len(boards[0].Tasks) != 1 || boards[1].Tasks == nil {
		t.Fatalf("unexpected tasks %#v / %#v", boards[0].Tasks, boards[1].Tasks)
	}

	tasks := []domain.Task{
		{ID: 3, Name: "C", Completed: false},
		{ID: 1, Name: "A", Completed: true},
		{ID: 2, Name: "B"},
	}
	if err := repo.ReplaceTasks(ctx, "b1", tasks); err != nil {
		t.Fatalf("ReplaceTasks() error = %v", err)
	}
	board, err := repo.GetBoard(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	if len(board.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %#v", board.Tasks)
	}
	for i, want := range tasks {
		if board.Tasks[i] != want {
			t.Fatalf("task %d = %#v, want %#v", i, board.Tasks[i], want)
		}
	}

	if err := repo.DeleteBoard(ctx, "b1"); err != nil {
		t.Fatalf("DeleteBoard() error = %v", err)
	}
	if _, err := repo.GetBoard(ctx, "b1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetBoard(deleted) error = %v", err)
	}
	if err := repo.DeleteBoard(ctx, "b1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("DeleteBoard(twice) error = %v", err)
	}
	if err := repo.ReplaceTasks(ctx, "b1", tasks); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("ReplaceTasks(deleted) error = %v", err)
	}
}

func TestRepository_ReplaceTasksRollsBackOnDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	if err := repo.CreateUser(ctx, domain.User{ID: "u1", Username: "ada"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	board := domain.Board{ID: "b1", Name: "x", UserID: "u1", Tasks: []domain.Task{{ID: 1, Name: "keep"}}}
	if err := repo.CreateBoard(ctx, board); err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}
	dup := []domain.Task{{ID: 5, Name: "a"}, {ID: 5, Name: "b"}}
	if err := repo.ReplaceTasks(ctx, "b1", dup); err == nil {
		t.Fatal("expected duplicate key error")
	}
	got, err := repo.GetBoard(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Name != "keep" {
		t.Fatalf("expected rollback, got %#v", got.Tasks)
	}
}

func TestRepository_ServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return []string{"u-1", "b-1"}[n-1]
	})
	user, err := svc.EnsureUser(ctx, "ada")
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	board, err := svc.AddBoard(ctx, domain.Board{Name: "Sprint 1", UserID: user.ID})
	if err != nil {
		t.Fatalf("AddBoard() error = %v", err)
	}
	if _, err := svc.AddTask(ctx, board.ID, domain.Task{ID: time.Now().UnixMilli(), Name: "Write"}); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	boards, err := svc.ListBoards(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListBoards() error = %v", err)
	}
	if len(boards) != 1 || len(boards[0].Tasks) != 1 || boards[0].Tasks[0].Name != "Write" {
		t.Fatalf("unexpected boards %#v", boards)
	}
}
