package app

import (
	"context"
	"fmt"

	"github.com/hylla/tavla/internal/domain"
)

// PendingLister lists outbox entries still waiting for delivery, oldest first.
type PendingLister interface {
	Pending(context.Context) ([]OutboxEntry, error)
}

// PendingOverlay is a SessionSource that shows server state with undelivered
// local changes applied on top, so a session opened while the queue is behind
// starts from what the user last saw.
type PendingOverlay struct {
	source  SessionSource
	pending PendingLister
}

// NewPendingOverlay wraps source with the entries pending reports.
func NewPendingOverlay(source SessionSource, pending PendingLister) *PendingOverlay {
	return &PendingOverlay{source: source, pending: pending}
}

// UserByUsername passes through to the wrapped source.
func (o *PendingOverlay) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	return o.source.UserByUsername(ctx, username)
}

// ListBoards loads the user's boards and replays pending entries onto them.
func (o *PendingOverlay) ListBoards(ctx context.Context, userID string) ([]domain.Board, error) {
	boards, err := o.source.ListBoards(ctx, userID)
	if err != nil {
		return nil, err
	}
	if o.pending == nil {
		return boards, nil
	}
	entries, err := o.pending.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending changes: %w", err)
	}
	list := domain.BoardList{UserID: userID, Boards: boards}
	for _, entry := range entries {
		list = replayMutation(list, entry.Mutation)
	}
	return list.Boards, nil
}

// replayMutation applies m the way the server will once it is delivered.
// Entries for boards not in list are skipped.
func replayMutation(list domain.BoardList, m domain.Mutation) domain.BoardList {
	if m.Kind == domain.MutationRemoveBoard {
		next, _ := list.Remove(m.BoardID)
		return next
	}
	board, ok := list.Find(m.BoardID)
	if !ok {
		return list
	}
	tasks := domain.NewTaskList(board.ID, board.Tasks)
	switch m.Kind {
	case domain.MutationAddTask:
		if m.Task == nil {
			return list
		}
		next, err := tasks.Add(*m.Task)
		if err != nil {
			return list
		}
		tasks = next
	case domain.MutationRemoveTask:
		if m.Tasks != nil {
			remaining := make([]domain.Task, 0, len(m.Tasks))
			for _, t := range m.Tasks {
				if t.ID != m.TaskID {
					remaining = append(remaining, t)
				}
			}
			tasks = tasks.Replace(remaining)
		} else {
			tasks, _ = tasks.Remove(m.TaskID)
		}
	case domain.MutationReplaceTasks:
		tasks = tasks.Replace(m.Tasks)
	case domain.MutationRenameTask:
		next, _, err := tasks.Rename(m.TaskID, m.NewName)
		if err != nil {
			return list
		}
		tasks = next
	default:
		return list
	}
	next, _ := list.WithTasks(board.ID, tasks.Tasks)
	return next
}
