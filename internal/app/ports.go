package app

import (
	"context"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// Repository represents repository data used by this package.
type Repository interface {
	CreateUser(context.Context, domain.User) error
	GetUserByUsername(context.Context, string) (domain.User, error)

	CreateBoard(context.Context, domain.Board) error
	GetBoard(context.Context, string) (domain.Board, error)
	ListBoards(context.Context, string) ([]domain.Board, error)
	DeleteBoard(context.Context, string) error
	ReplaceTasks(context.Context, string, []domain.Task) error
}

// Dispatcher accepts mutations that were already applied to local state.
type Dispatcher interface {
	Dispatch(context.Context, domain.Mutation) error
}

// BoardCreator persists a new board and returns it with its assigned id.
type BoardCreator interface {
	AddBoard(context.Context, domain.Board) (domain.Board, error)
}

// SessionSource loads the initial state of a board session.
type SessionSource interface {
	UserByUsername(context.Context, string) (domain.User, error)
	ListBoards(context.Context, string) ([]domain.Board, error)
}

// MutationSender delivers one mutation to the persistence service.
type MutationSender interface {
	Send(context.Context, domain.Mutation) error
}

// OutboxEntry is one queued mutation.
type OutboxEntry struct {
	Seq           int64
	Mutation      domain.Mutation
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	Dead          bool
}

// OutboxStore is the durable backing of the sync queue. Pending returns live
// entries in append order; dead entries are excluded.
type OutboxStore interface {
	Append(context.Context, domain.Mutation, time.Time) (OutboxEntry, error)
	Pending(context.Context) ([]OutboxEntry, error)
	MarkDelivered(context.Context, int64) error
	MarkRetry(context.Context, int64, int, string, time.Time) error
	MarkDead(context.Context, int64, string) error
	ListDead(context.Context) ([]OutboxEntry, error)
}
