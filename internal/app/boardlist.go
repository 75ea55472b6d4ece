package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/hylla/tavla/internal/domain"
)

// BoardListController owns the board collection of one user.
type BoardListController struct {
	mu         sync.Mutex
	list       domain.BoardList
	creator    BoardCreator
	dispatcher Dispatcher
	onErr      DispatchErrorHandler
}

// NewBoardListController constructs a controller seeded with boards.
func NewBoardListController(userID string, boards []domain.Board, creator BoardCreator, dispatcher Dispatcher) *BoardListController {
	list := domain.BoardList{UserID: userID, Boards: make([]domain.Board, 0, len(boards))}
	for _, b := range boards {
		list.Boards = append(list.Boards, b.Clone())
	}
	return &BoardListController{
		list:       list,
		creator:    creator,
		dispatcher: dispatcher,
	}
}

// WithDispatchErrorHandler sets the handler for dispatch failures.
func (c *BoardListController) WithDispatchErrorHandler(fn DispatchErrorHandler) *BoardListController {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onErr = fn
	return c
}

// UserID returns the owner of the collection.
func (c *BoardListController) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.UserID
}

// Boards returns a copy of the collection.
func (c *BoardListController) Boards() []domain.Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Board, 0, len(c.list.Boards))
	for _, b := range c.list.Boards {
		out = append(out, b.Clone())
	}
	return out
}

// Board returns the board with id.
func (c *BoardListController) Board(id string) (domain.Board, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.list.Find(id)
	return b.Clone(), ok
}

// AddBoard creates a board through the creator and appends the stored result.
// The collection is unchanged when the creator fails.
func (c *BoardListController) AddBoard(ctx context.Context, name, description string) (domain.Board, error) {
	board, err := domain.NewBoard(name, description, c.UserID())
	if err != nil {
		return domain.Board{}, err
	}
	if c.creator == nil {
		return domain.Board{}, fmt.Errorf("add board: no creator configured")
	}
	created, err := c.creator.AddBoard(ctx, board)
	if err != nil {
		return domain.Board{}, fmt.Errorf("add board: %w", err)
	}
	if created.Tasks == nil {
		created.Tasks = []domain.Task{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.list.Append(created)
	if err != nil {
		return domain.Board{}, err
	}
	c.list = next
	return created.Clone(), nil
}

// RemoveBoard drops board id and dispatches its deletion.
func (c *BoardListController) RemoveBoard(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, changed := c.list.Remove(id)
	if !changed {
		return nil
	}
	c.list = next
	if c.dispatcher == nil {
		return nil
	}
	m := domain.Mutation{Kind: domain.MutationRemoveBoard, BoardID: id}
	if err := c.dispatcher.Dispatch(ctx, m); err != nil && c.onErr != nil {
		c.onErr(m, err)
	}
	return nil
}

// ReplaceTasks writes a board's task sequence back into the collection.
func (c *BoardListController) ReplaceTasks(boardID string, tasks []domain.Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, changed := c.list.WithTasks(boardID, tasks)
	c.list = next
	return changed
}
