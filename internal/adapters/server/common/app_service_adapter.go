package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service board operations.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// UserByUsername resolves a user, provisioning it on first lookup.
func (a *AppServiceAdapter) UserByUsername(ctx context.Context, username string) (UserPayload, error) {
	if err := a.ready(); err != nil {
		return UserPayload{}, err
	}
	user, err := a.service.EnsureUser(ctx, username)
	if err != nil {
		return UserPayload{}, mapAppError("lookup user", err)
	}
	return UserToPayload(user), nil
}

// ListBoards lists one user's boards.
func (a *AppServiceAdapter) ListBoards(ctx context.Context, userID string) ([]BoardPayload, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	boards, err := a.service.ListBoards(ctx, userID)
	if err != nil {
		return nil, mapAppError("list boards", err)
	}
	out := make([]BoardPayload, 0, len(boards))
	for _, b := range boards {
		out = append(out, BoardToPayload(b))
	}
	return out, nil
}

// GetBoard returns one board.
func (a *AppServiceAdapter) GetBoard(ctx context.Context, boardID string) (BoardPayload, error) {
	if err := a.ready(); err != nil {
		return BoardPayload{}, err
	}
	board, err := a.service.GetBoard(ctx, strings.TrimSpace(boardID))
	if err != nil {
		return BoardPayload{}, mapAppError("get board", err)
	}
	return BoardToPayload(board), nil
}

// AddBoard creates a board and returns it with its assigned id.
func (a *AppServiceAdapter) AddBoard(ctx context.Context, in AddBoardRequest) (BoardPayload, error) {
	if err := a.ready(); err != nil {
		return BoardPayload{}, err
	}
	board, err := a.service.AddBoard(ctx, BoardFromPayload(in.NewBoard))
	if err != nil {
		return BoardPayload{}, mapAppError("add board", err)
	}
	return BoardToPayload(board), nil
}

// RemoveBoard deletes a board.
func (a *AppServiceAdapter) RemoveBoard(ctx context.Context, in RemoveBoardRequest) error {
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.service.RemoveBoard(ctx, strings.TrimSpace(in.ID)); err != nil {
		return mapAppError("remove board", err)
	}
	return nil
}

// AddTask prepends a task.
func (a *AppServiceAdapter) AddTask(ctx context.Context, in AddTaskRequest) (BoardPayload, error) {
	if err := a.ready(); err != nil {
		return BoardPayload{}, err
	}
	board, err := a.service.AddTask(ctx, strings.TrimSpace(in.BoardID), TaskFromPayload(in.NewTask))
	if err != nil {
		return BoardPayload{}, mapAppError("add task", err)
	}
	return BoardToPayload(board), nil
}

// RemoveTask removes a task, storing the client's remaining order when sent.
func (a *AppServiceAdapter) RemoveTask(ctx context.Context, in RemoveTaskRequest) (BoardPayload, error) {
	if err := a.ready(); err != nil {
		return BoardPayload{}, err
	}
	board, err := a.service.RemoveTask(ctx, strings.TrimSpace(in.BoardID), in.TaskID, TasksFromPayload(in.Tasks))
	if err != nil {
		return BoardPayload{}, mapAppError("remove task", err)
	}
	return BoardToPayload(board), nil
}

// CompleteTask stores the full task sequence after a completion toggle or reorder.
func (a *AppServiceAdapter) CompleteTask(ctx context.Context, in CompleteTaskRequest) (BoardPayload, error) {
	if err := a.ready(); err != nil {
		return BoardPayload{}, err
	}
	if in.Tasks == nil {
		return BoardPayload{}, fmt.Errorf("complete task: tasks are required: %w", ErrInvalidRequest)
	}
	board, err := a.service.ReplaceTasks(ctx, strings.TrimSpace(in.BoardID), TasksFromPayload(in.Tasks))
	if err != nil {
		return BoardPayload{}, mapAppError("complete task", err)
	}
	return BoardToPayload(board), nil
}

// EditTask renames a task.
func (a *AppServiceAdapter) EditTask(ctx context.Context, in EditTaskRequest) (BoardPayload, error) {
	if err := a.ready(); err != nil {
		return BoardPayload{}, err
	}
	board, err := a.service.RenameTask(ctx, strings.TrimSpace(in.BoardID), in.TaskID, in.NewName)
	if err != nil {
		return BoardPayload{}, mapAppError("edit task", err)
	}
	return BoardToPayload(board), nil
}

// ToggleTask flips the completion of one task.
func (a *AppServiceAdapter) ToggleTask(ctx context.Context, boardID string, taskID int64) (BoardPayload, error) {
	if err := a.ready(); err != nil {
		return BoardPayload{}, err
	}
	board, err := a.service.ToggleTask(ctx, strings.TrimSpace(boardID), taskID)
	if err != nil {
		return BoardPayload{}, mapAppError("toggle task", err)
	}
	return BoardToPayload(board), nil
}

// MoveTask moves one task onto the slot of another.
func (a *AppServiceAdapter) MoveTask(ctx context.Context, boardID string, activeID, overID int64) (BoardPayload, error) {
	if err := a.ready(); err != nil {
		return BoardPayload{}, err
	}
	board, err := a.service.MoveTask(ctx, strings.TrimSpace(boardID), activeID, overID)
	if err != nil {
		return BoardPayload{}, mapAppError("move task", err)
	}
	return BoardToPayload(board), nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return errors.New("app service adapter is not configured")
	}
	return nil
}

// mapAppError maps app and domain errors onto transport error classes.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrBlankName),
		errors.Is(err, domain.ErrInvalidUsername),
		errors.Is(err, domain.ErrDuplicateTaskID):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
