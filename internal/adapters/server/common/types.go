// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/tavla/internal/domain"
)

// ErrInvalidRequest reports malformed or rejected request input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// TaskPayload is the wire form of one task.
type TaskPayload struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// BoardPayload is the wire form of one board.
type BoardPayload struct {
	ID          string        `json:"_id,omitempty"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Tasks       []TaskPayload `json:"tasks"`
	UserID      string        `json:"userId"`
}

// UserPayload is the wire form of one user.
type UserPayload struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// DataEnvelope wraps successful responses.
type DataEnvelope[T any] struct {
	Data T `json:"data"`
}

// AddBoardRequest is the body of POST /boards/addBoard.
type AddBoardRequest struct {
	NewBoard BoardPayload `json:"newBoard"`
}

// RemoveBoardRequest is the body of POST /boards/removeBoard.
type RemoveBoardRequest struct {
	ID string `json:"id"`
}

// RemoveBoardResult echoes the removed board id.
type RemoveBoardResult struct {
	ID string `json:"id"`
}

// AddTaskRequest is the body of POST /tasks/addTask.
type AddTaskRequest struct {
	NewTask TaskPayload `json:"newTask"`
	BoardID string      `json:"boardId"`
}

// RemoveTaskRequest is the body of POST /tasks/removeTask.
type RemoveTaskRequest struct {
	TaskID  int64         `json:"taskId"`
	BoardID string        `json:"boardId"`
	Tasks   []TaskPayload `json:"tasks"`
}

// CompleteTaskRequest is the body of POST /tasks/completeTask. It carries the full sequence.
type CompleteTaskRequest struct {
	BoardID string        `json:"boardId"`
	Tasks   []TaskPayload `json:"tasks"`
}

// EditTaskRequest is the body of POST /tasks/editTask.
type EditTaskRequest struct {
	TaskID  int64  `json:"taskId"`
	BoardID string `json:"boardId"`
	NewName string `json:"newName"`
}

// BoardService is the board persistence surface shared by HTTP and MCP adapters.
type BoardService interface {
	UserByUsername(context.Context, string) (UserPayload, error)
	ListBoards(context.Context, string) ([]BoardPayload, error)
	GetBoard(context.Context, string) (BoardPayload, error)
	AddBoard(context.Context, AddBoardRequest) (BoardPayload, error)
	RemoveBoard(context.Context, RemoveBoardRequest) error
	AddTask(context.Context, AddTaskRequest) (BoardPayload, error)
	RemoveTask(context.Context, RemoveTaskRequest) (BoardPayload, error)
	CompleteTask(context.Context, CompleteTaskRequest) (BoardPayload, error)
	EditTask(context.Context, EditTaskRequest) (BoardPayload, error)
	ToggleTask(context.Context, string, int64) (BoardPayload, error)
	MoveTask(context.Context, string, int64, int64) (BoardPayload, error)
}

// TaskToPayload maps a domain task onto its wire form.
func TaskToPayload(t domain.Task) TaskPayload {
	return TaskPayload{ID: t.ID, Name: t.Name, Completed: t.Completed}
}

// TaskFromPayload maps a wire task onto the domain.
func TaskFromPayload(p TaskPayload) domain.Task {
	return domain.Task{ID: p.ID, Name: p.Name, Completed: p.Completed}
}

// TasksToPayload maps a sequence. A nil input stays nil.
func TasksToPayload(tasks []domain.Task) []TaskPayload {
	if tasks == nil {
		return nil
	}
	out := make([]TaskPayload, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskToPayload(t))
	}
	return out
}

// TasksFromPayload maps a wire sequence. A nil input stays nil so an absent
// field can be told apart from an empty one.
func TasksFromPayload(tasks []TaskPayload) []domain.Task {
	if tasks == nil {
		return nil
	}
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskFromPayload(t))
	}
	return out
}

// BoardToPayload maps a domain board onto its wire form.
func BoardToPayload(b domain.Board) BoardPayload {
	tasks := TasksToPayload(b.Tasks)
	if tasks == nil {
		tasks = []TaskPayload{}
	}
	return BoardPayload{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Tasks:       tasks,
		UserID:      b.UserID,
	}
}

// BoardFromPayload maps a wire board onto the domain.
func BoardFromPayload(p BoardPayload) domain.Board {
	tasks := TasksFromPayload(p.Tasks)
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return domain.Board{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Tasks:       tasks,
		UserID:      p.UserID,
	}
}

// UserToPayload maps a domain user onto its wire form.
func UserToPayload(u domain.User) UserPayload {
	return UserPayload{ID: u.ID, Username: u.Username}
}

// UserFromPayload maps a wire user onto the domain.
func UserFromPayload(p UserPayload) domain.User {
	return domain.User{ID: p.ID, Username: p.Username}
}
