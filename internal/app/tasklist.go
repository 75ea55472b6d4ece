package app

import (
	"context"
	"sync"

	"github.com/hylla/tavla/internal/domain"
)

// DispatchErrorHandler receives mutations the dispatcher refused. Local state is kept.
type DispatchErrorHandler func(domain.Mutation, error)

// TaskListController owns the task sequence of the board on display. Every
// operation replaces local state first and then dispatches the matching mutation.
type TaskListController struct {
	mu         sync.Mutex
	list       domain.TaskList
	ids        *domain.TaskIDSource
	dispatcher Dispatcher
	onErr      DispatchErrorHandler
}

// NewTaskListController constructs a controller for board. A nil ids source uses the wall clock.
func NewTaskListController(board domain.Board, ids *domain.TaskIDSource, dispatcher Dispatcher) *TaskListController {
	if ids == nil {
		ids = domain.NewTaskIDSource(nil)
	}
	list := domain.TaskList{BoardID: board.ID}.Replace(board.Tasks)
	ids.Observe(list.Tasks)
	return &TaskListController{
		list:       list,
		ids:        ids,
		dispatcher: dispatcher,
	}
}

// WithDispatchErrorHandler sets the handler for dispatch failures.
func (c *TaskListController) WithDispatchErrorHandler(fn DispatchErrorHandler) *TaskListController {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onErr = fn
	return c
}

// BoardID returns the id of the controlled board.
func (c *TaskListController) BoardID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.BoardID
}

// Tasks returns a copy of the current sequence.
func (c *TaskListController) Tasks() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CloneTasks(c.list.Tasks)
}

// Task returns the task with id.
func (c *TaskListController) Task(id int64) (domain.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Find(id)
}

// AddTask prepends a new task named name.
func (c *TaskListController) AddTask(ctx context.Context, name string) (domain.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if domain.IsBlank(name) {
		return domain.Task{}, domain.ErrBlankName
	}
	task, err := domain.NewTask(c.ids.Next(), name)
	if err != nil {
		return domain.Task{}, err
	}
	next, err := c.list.Add(task)
	if err != nil {
		return domain.Task{}, err
	}
	c.list = next
	c.dispatch(ctx, domain.Mutation{
		Kind:    domain.MutationAddTask,
		BoardID: c.list.BoardID,
		Task:    &task,
	})
	return task, nil
}

// RemoveTask deletes task id and sends the remaining sequence along with the removed id.
func (c *TaskListController) RemoveTask(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, changed := c.list.Remove(id)
	if !changed {
		return nil
	}
	c.list = next
	c.dispatch(ctx, domain.Mutation{
		Kind:    domain.MutationRemoveTask,
		BoardID: c.list.BoardID,
		TaskID:  id,
		Tasks:   domain.CloneTasks(c.list.Tasks),
	})
	return nil
}

// CompleteTask toggles completion of task id using its current flags.
func (c *TaskListController) CompleteTask(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := c.list.Find(id)
	if !ok {
		return nil
	}
	next, changed := c.list.Complete(id, task.Completed, task.Edit)
	if !changed {
		return nil
	}
	c.list = next
	c.dispatchSequence(ctx)
	return nil
}

// EditTask toggles the edit flag of task id. It reports whether the task is now being edited.
func (c *TaskListController) EditTask(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := c.list.Find(id)
	if !ok {
		return false
	}
	c.list, _ = c.list.ToggleEdit(id, task.Edit)
	return !task.Edit
}

// SubmitEditedTask renames task id and leaves edit mode.
func (c *TaskListController) SubmitEditedTask(ctx context.Context, id int64, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, changed, err := c.list.Rename(id, newName)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	c.list = next
	c.dispatch(ctx, domain.Mutation{
		Kind:    domain.MutationRenameTask,
		BoardID: c.list.BoardID,
		TaskID:  id,
		NewName: newName,
	})
	return nil
}

// Reorder moves task activeID to the slot of overID.
func (c *TaskListController) Reorder(ctx context.Context, activeID, overID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, changed := c.list.Reorder(activeID, overID)
	if !changed {
		return nil
	}
	c.list = next
	c.dispatchSequence(ctx)
	return nil
}

func (c *TaskListController) dispatchSequence(ctx context.Context) {
	c.dispatch(ctx, domain.Mutation{
		Kind:    domain.MutationReplaceTasks,
		BoardID: c.list.BoardID,
		Tasks:   domain.CloneTasks(c.list.Tasks),
	})
}

// dispatch runs under c.mu so mutations reach the dispatcher in the order they were applied.
func (c *TaskListController) dispatch(ctx context.Context, m domain.Mutation) {
	if c.dispatcher == nil {
		return
	}
	if err := c.dispatcher.Dispatch(ctx, m); err != nil && c.onErr != nil {
		c.onErr(m, err)
	}
}
