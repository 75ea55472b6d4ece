package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service is the persistence service behind the board API. Task operations
// reuse the same pure transitions the client controllers apply.
type Service struct {
	repo  Repository
	idGen IDGenerator
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	return &Service{
		repo:  repo,
		idGen: idGen,
	}
}

// EnsureUser returns the user with username, creating it on first lookup.
func (s *Service) EnsureUser(ctx context.Context, username string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, domain.ErrInvalidUsername
	}
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.User{}, err
	}
	user, err = domain.NewUser(s.idGen(), username)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// AddBoard assigns an id to in and stores it.
func (s *Service) AddBoard(ctx context.Context, in domain.Board) (domain.Board, error) {
	board, err := domain.NewBoard(in.Name, in.Description, in.UserID)
	if err != nil {
		return domain.Board{}, err
	}
	if board.UserID == "" {
		return domain.Board{}, domain.ErrInvalidID
	}
	if err := validateSequence(in.Tasks); err != nil {
		return domain.Board{}, err
	}
	board.ID = s.idGen()
	if board.ID == "" {
		return domain.Board{}, domain.ErrInvalidID
	}
	board.Tasks = domain.TaskList{}.Replace(in.Tasks).Tasks
	if err := s.repo.CreateBoard(ctx, board); err != nil {
		return domain.Board{}, err
	}
	return board, nil
}

// ListBoards lists the boards owned by userID in creation order.
func (s *Service) ListBoards(ctx context.Context, userID string) ([]domain.Board, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListBoards(ctx, userID)
}

// GetBoard returns one board with its tasks.
func (s *Service) GetBoard(ctx context.Context, boardID string) (domain.Board, error) {
	return s.repo.GetBoard(ctx, boardID)
}

// RemoveBoard deletes a board. Removing an unknown board succeeds.
func (s *Service) RemoveBoard(ctx context.Context, boardID string) error {
	if strings.TrimSpace(boardID) == "" {
		return domain.ErrInvalidID
	}
	err := s.repo.DeleteBoard(ctx, boardID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// AddTask prepends task to the board. Replaying an id that is already present is a no-op.
func (s *Service) AddTask(ctx context.Context, boardID string, in domain.Task) (domain.Board, error) {
	task, err := domain.NewTask(in.ID, in.Name)
	if err != nil {
		return domain.Board{}, err
	}
	task.Completed = in.Completed
	return s.update(ctx, boardID, func(l domain.TaskList) (domain.TaskList, bool, error) {
		next, err := l.Add(task)
		if errors.Is(err, domain.ErrDuplicateTaskID) {
			return l, false, nil
		}
		if err != nil {
			return l, false, err
		}
		return next, true, nil
	})
}

// RemoveTask removes taskID. When remaining is non-nil it is stored as the new
// order, minus taskID.
func (s *Service) RemoveTask(ctx context.Context, boardID string, taskID int64, remaining []domain.Task) (domain.Board, error) {
	if remaining != nil {
		filtered := make([]domain.Task, 0, len(remaining))
		for _, t := range remaining {
			if t.ID != taskID {
				filtered = append(filtered, t)
			}
		}
		return s.ReplaceTasks(ctx, boardID, filtered)
	}
	return s.update(ctx, boardID, func(l domain.TaskList) (domain.TaskList, bool, error) {
		next, changed := l.Remove(taskID)
		return next, changed, nil
	})
}

// ReplaceTasks stores tasks as the board's full sequence.
func (s *Service) ReplaceTasks(ctx context.Context, boardID string, tasks []domain.Task) (domain.Board, error) {
	if err := validateSequence(tasks); err != nil {
		return domain.Board{}, err
	}
	return s.update(ctx, boardID, func(l domain.TaskList) (domain.TaskList, bool, error) {
		return l.Replace(tasks), true, nil
	})
}

// RenameTask renames one task. An unknown task id is a no-op.
func (s *Service) RenameTask(ctx context.Context, boardID string, taskID int64, name string) (domain.Board, error) {
	if domain.IsBlank(name) {
		return domain.Board{}, domain.ErrBlankName
	}
	return s.update(ctx, boardID, func(l domain.TaskList) (domain.TaskList, bool, error) {
		return l.Rename(taskID, name)
	})
}

// ToggleTask flips the completion of one task.
func (s *Service) ToggleTask(ctx context.Context, boardID string, taskID int64) (domain.Board, error) {
	return s.update(ctx, boardID, func(l domain.TaskList) (domain.TaskList, bool, error) {
		task, ok := l.Find(taskID)
		if !ok {
			return l, false, ErrNotFound
		}
		next, changed := l.Complete(taskID, task.Completed, false)
		return next, changed, nil
	})
}

// MoveTask moves activeID to the position held by overID.
func (s *Service) MoveTask(ctx context.Context, boardID string, activeID, overID int64) (domain.Board, error) {
	return s.update(ctx, boardID, func(l domain.TaskList) (domain.TaskList, bool, error) {
		if _, ok := l.Find(activeID); !ok {
			return l, false, ErrNotFound
		}
		if _, ok := l.Find(overID); !ok {
			return l, false, ErrNotFound
		}
		next, changed := l.Reorder(activeID, overID)
		return next, changed, nil
	})
}

// update loads a board, applies fn to its tasks and stores the result when it changed.
func (s *Service) update(ctx context.Context, boardID string, fn func(domain.TaskList) (domain.TaskList, bool, error)) (domain.Board, error) {
	if strings.TrimSpace(boardID) == "" {
		return domain.Board{}, domain.ErrInvalidID
	}
	board, err := s.repo.GetBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	next, changed, err := fn(domain.NewTaskList(board.ID, board.Tasks))
	if err != nil {
		return domain.Board{}, err
	}
	if !changed {
		return board, nil
	}
	if err := s.repo.ReplaceTasks(ctx, board.ID, next.Tasks); err != nil {
		return domain.Board{}, err
	}
	board.Tasks = next.Tasks
	return board, nil
}

// validateSequence checks ids and names of a full task sequence.
func validateSequence(tasks []domain.Task) error {
	seen := make(map[int64]struct{}, len(tasks))
	for _, t := range tasks {
		if _, err := domain.NewTask(t.ID, t.Name); err != nil {
			return err
		}
		if _, ok := seen[t.ID]; ok {
			return domain.ErrDuplicateTaskID
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
