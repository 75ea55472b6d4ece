package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

type fakeRepo struct {
	users  map[string]domain.User
	boards map[string]domain.Board
	order  []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:  map[string]domain.User{},
		boards: map[string]domain.Board{},
	}
}

func (f *fakeRepo) CreateUser(_ context.Context, u domain.User) error {
	f.users[u.Username] = u
	return nil
}

func (f *fakeRepo) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	u, ok := f.users[username]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) CreateBoard(_ context.Context, b domain.Board) error {
	f.boards[b.ID] = b.Clone()
	f.order = append(f.order, b.ID)
	return nil
}

func (f *fakeRepo) GetBoard(_ context.Context, id string) (domain.Board, error) {
	b, ok := f.boards[id]
	if !ok {
		return domain.Board{}, ErrNotFound
	}
	return b.Clone(), nil
}

func (f *fakeRepo) ListBoards(_ context.Context, userID string) ([]domain.Board, error) {
	out := []domain.Board{}
	for _, id := range f.order {
		b, ok := f.boards[id]
		if ok && b.UserID == userID {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteBoard(_ context.Context, id string) error {
	if _, ok := f.boards[id]; !ok {
		return ErrNotFound
	}
	delete(f.boards, id)
	f.order = slices.DeleteFunc(f.order, func(v string) bool { return v == id })
	return nil
}

func (f *fakeRepo) ReplaceTasks(_ context.Context, boardID string, tasks []domain.Task) error {
	b, ok := f.boards[boardID]
	if !ok {
		return ErrNotFound
	}
	b.Tasks = domain.CloneTasks(tasks)
	f.boards[boardID] = b
	return nil
}

type recordingDispatcher struct {
	mu        sync.Mutex
	mutations []domain.Mutation
	err       error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, m domain.Mutation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.mutations = append(d.mutations, m)
	return nil
}

func (d *recordingDispatcher) kinds() []domain.MutationKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.MutationKind, 0, len(d.mutations))
	for _, m := range d.mutations {
		out = append(out, m.Kind)
	}
	return out
}

type fakeCreator struct {
	nextID string
	err    error
	calls  int
}

func (c *fakeCreator) AddBoard(_ context.Context, b domain.Board) (domain.Board, error) {
	c.calls++
	if c.err != nil {
		return domain.Board{}, c.err
	}
	b.ID = c.nextID
	return b, nil
}

type fakeSource struct {
	user   domain.User
	boards []domain.Board
	err    error
}

func (s fakeSource) UserByUsername(_ context.Context, username string) (domain.User, error) {
	if s.err != nil {
		return domain.User{}, s.err
	}
	if username != s.user.Username {
		return domain.User{}, ErrNotFound
	}
	return s.user, nil
}

func (s fakeSource) ListBoards(_ context.Context, userID string) ([]domain.Board, error) {
	out := []domain.Board{}
	for _, b := range s.boards {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

type memOutbox struct {
	mu      sync.Mutex
	nextSeq int64
	entries []OutboxEntry
}

func (m *memOutbox) Append(_ context.Context, mut domain.Mutation, now time.Time) (OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	e := OutboxEntry{Seq: m.nextSeq, Mutation: mut, CreatedAt: now, NextAttemptAt: now}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memOutbox) Pending(context.Context) ([]OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []OutboxEntry{}
	for _, e := range m.entries {
		if !e.Dead {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memOutbox) ListDead(context.Context) ([]OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []OutboxEntry{}
	for _, e := range m.entries {
		if e.Dead {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memOutbox) MarkDelivered(_ context.Context, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = slices.DeleteFunc(m.entries, func(e OutboxEntry) bool { return e.Seq == seq })
	return nil
}

func (m *memOutbox) MarkRetry(_ context.Context, seq int64, attempts int, lastErr string, next time.Time) error {
	return m.update(seq, func(e *OutboxEntry) {
		e.Attempts = attempts
		e.LastError = lastErr
		e.NextAttemptAt = next
	})
}

func (m *memOutbox) MarkDead(_ context.Context, seq int64, lastErr string) error {
	return m.update(seq, func(e *OutboxEntry) {
		e.Attempts++
		e.LastError = lastErr
		e.Dead = true
	})
}

func (m *memOutbox) update(seq int64, fn func(*OutboxEntry)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].Seq == seq {
			fn(&m.entries[i])
			return nil
		}
	}
	return ErrNotFound
}

type scriptedSender struct {
	mu    sync.Mutex
	errs  []error
	sent  []domain.Mutation
	calls int
}

func (s *scriptedSender) Send(_ context.Context, m domain.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return err
		}
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *scriptedSender) sentKinds() []domain.MutationKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MutationKind, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.Kind)
	}
	return out
}

var errOffline = errors.New("connection refused")
