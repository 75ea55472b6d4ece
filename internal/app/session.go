package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hylla/tavla/internal/domain"
)

// Session is the board-session context: one user's board collection and at most
// one open board whose tasks are owned by a TaskListController.
type Session struct {
	mu         sync.Mutex
	user       domain.User
	boards     *BoardListController
	dispatcher Dispatcher
	ids        *domain.TaskIDSource
	onErr      DispatchErrorHandler
	active     *TaskListController
}

// OpenSession loads the user by username and then the user's boards.
func OpenSession(ctx context.Context, source SessionSource, creator BoardCreator, dispatcher Dispatcher, username string) (*Session, error) {
	if source == nil {
		return nil, fmt.Errorf("open session: no session source configured")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.ErrInvalidUsername
	}
	user, err := source.UserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load user %q: %w", username, err)
	}
	boards, err := source.ListBoards(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load boards for %q: %w", username, err)
	}
	return &Session{
		user:       user,
		boards:     NewBoardListController(user.ID, boards, creator, dispatcher),
		dispatcher: dispatcher,
		ids:        domain.NewTaskIDSource(nil),
	}, nil
}

// WithDispatchErrorHandler sets the dispatch failure handler for the board list
// and every board opened afterwards.
func (s *Session) WithDispatchErrorHandler(fn DispatchErrorHandler) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onErr = fn
	s.boards.WithDispatchErrorHandler(fn)
	if s.active != nil {
		s.active.WithDispatchErrorHandler(fn)
	}
	return s
}

// WithTaskIDSource replaces the id source used by boards opened afterwards.
func (s *Session) WithTaskIDSource(ids *domain.TaskIDSource) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ids != nil {
		s.ids = ids
	}
	return s
}

// User returns the session owner.
func (s *Session) User() domain.User {
	return s.user
}

// Boards returns the board-list controller.
func (s *Session) Boards() *BoardListController {
	return s.boards
}

// OpenBoard makes boardID the displayed board. A previously open board is closed first.
func (s *Session) OpenBoard(boardID string) (*TaskListController, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards.Board(boardID)
	if !ok {
		return nil, fmt.Errorf("open board %q: %w", boardID, ErrNotFound)
	}
	s.closeLocked()
	s.active = NewTaskListController(board, s.ids, s.dispatcher).WithDispatchErrorHandler(s.onErr)
	return s.active, nil
}

// Active returns the open board's controller.
func (s *Session) Active() (*TaskListController, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, ErrNoBoardOpen
	}
	return s.active, nil
}

// CloseBoard writes the open board's tasks back into the board list.
func (s *Session) CloseBoard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.active == nil {
		return
	}
	s.boards.ReplaceTasks(s.active.BoardID(), s.active.Tasks())
	s.active = nil
}
