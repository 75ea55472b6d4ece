package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// Cache wraps a repository with a Redis read-through cache of each user's board list.
// Writes go to the backing store first and then evict the owner's list. A read that
// loaded the list before a write can store it after the eviction; such a stale list
// lives at most one TTL. A zero TTL disables caching.
type Cache struct {
	base  app.Repository
	redis *redis.Client
	ttl   time.Duration
}

// New creates a caching repository using the provided Redis client and TTL.
func New(base app.Repository, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("rediscache.New: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
}

// Ping reports whether Redis answers.
func (c *Cache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// CreateUser passes through; users are not cached.
func (c *Cache) CreateUser(ctx context.Context, u domain.User) error {
	return c.base.CreateUser(ctx, u)
}

// GetUserByUsername passes through to the backing store.
func (c *Cache) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return c.base.GetUserByUsername(ctx, username)
}

// GetBoard reads one board from the backing store.
func (c *Cache) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	return c.base.GetBoard(ctx, id)
}

// ListBoards returns the cached list for userID, loading and storing it on a miss.
func (c *Cache) ListBoards(ctx context.Context, userID string) ([]domain.Board, error) {
	if boards, ok := c.loadBoards(ctx, userID); ok {
		return boards, nil
	}
	boards, err := c.base.ListBoards(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.storeBoards(ctx, userID, boards)
	return boards, nil
}

// CreateBoard stores b and evicts its owner's list.
func (c *Cache) CreateBoard(ctx context.Context, b domain.Board) error {
	if err := c.base.CreateBoard(ctx, b); err != nil {
		return err
	}
	c.evict(ctx, b.UserID)
	return nil
}

// DeleteBoard removes the board and evicts its owner's list and owner key.
func (c *Cache) DeleteBoard(ctx context.Context, id string) error {
	owner := c.ownerOf(ctx, id)
	if err := c.base.DeleteBoard(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, owner)
	if c.redis != nil {
		_ = c.redis.Del(ctx, ownerCacheKey(id)).Err()
	}
	return nil
}

// ReplaceTasks stores the sequence and evicts the board owner's list.
func (c *Cache) ReplaceTasks(ctx context.Context, boardID string, tasks []domain.Task) error {
	if err := c.base.ReplaceTasks(ctx, boardID, tasks); err != nil {
		return err
	}
	c.evict(ctx, c.ownerOf(ctx, boardID))
	return nil
}

// ownerOf resolves the owner of a board, first from Redis and then from the backing store.
func (c *Cache) ownerOf(ctx context.Context, boardID string) string {
	if c.redis == nil {
		return ""
	}
	owner, err := c.redis.Get(ctx, ownerCacheKey(boardID)).Result()
	if err == nil && owner != "" {
		return owner
	}
	b, err := c.base.GetBoard(ctx, boardID)
	if err != nil {
		return ""
	}
	if c.ttl > 0 {
		_ = c.redis.Set(ctx, ownerCacheKey(boardID), b.UserID, c.ttl).Err()
	}
	return b.UserID
}

// cachedTask and cachedBoard are the JSON forms kept in Redis.
type cachedTask struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

type cachedBoard struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	UserID      string       `json:"userId"`
	Tasks       []cachedTask `json:"tasks"`
}

func (c *Cache) loadBoards(ctx context.Context, userID string) ([]domain.Board, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardsCacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, boardsCacheKey(userID)).Err()
		}
		return nil, false
	}
	var cached []cachedBoard
	if err := json.Unmarshal(data, &cached); err != nil {
		_ = c.redis.Del(ctx, boardsCacheKey(userID)).Err()
		return nil, false
	}
	out := make([]domain.Board, 0, len(cached))
	for _, cb := range cached {
		b := domain.Board{
			ID:          cb.ID,
			Name:        cb.Name,
			Description: cb.Description,
			UserID:      cb.UserID,
			Tasks:       make([]domain.Task, 0, len(cb.Tasks)),
		}
		for _, ct := range cb.Tasks {
			b.Tasks = append(b.Tasks, domain.Task{ID: ct.ID, Name: ct.Name, Completed: ct.Completed})
		}
		out = append(out, b)
	}
	return out, true
}

func (c *Cache) storeBoards(ctx context.Context, userID string, boards []domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	cached := make([]cachedBoard, 0, len(boards))
	pipe := c.redis.Pipeline()
	for _, b := range boards {
		cb := cachedBoard{
			ID:          b.ID,
			Name:        b.Name,
			Description: b.Description,
			UserID:      b.UserID,
			Tasks:       make([]cachedTask, 0, len(b.Tasks)),
		}
		for _, t := range b.Tasks {
			cb.Tasks = append(cb.Tasks, cachedTask{ID: t.ID, Name: t.Name, Completed: t.Completed})
		}
		cached = append(cached, cb)
		pipe.Set(ctx, ownerCacheKey(b.ID), b.UserID, c.ttl)
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	pipe.Set(ctx, boardsCacheKey(userID), data, c.ttl)
	_, _ = pipe.Exec(ctx)
}

func (c *Cache) evict(ctx context.Context, userID string) {
	if c.redis == nil || userID == "" {
		return
	}
	_ = c.redis.Del(ctx, boardsCacheKey(userID)).Err()
}

func boardsCacheKey(userID string) string {
	return "boards:" + userID
}

func ownerCacheKey(boardID string) string {
	return "board-owner:" + boardID
}
