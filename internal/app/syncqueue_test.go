package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestQueue(sender MutationSender, cfg SyncConfig) (*SyncQueue, *memOutbox, *manualClock) {
	store := &memOutbox{}
	clock := &manualClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	q := NewSyncQueue(store, sender, clock.Now, cfg)
	q.jitter = func() float64 { return 0.5 }
	return q, store, clock
}

func removeMutation(id string) domain.Mutation {
	return domain.Mutation{Kind: domain.MutationRemoveBoard, BoardID: id}
}

func TestSyncQueueDeliversInOrder(t *testing.T) {
	sender := &scriptedSender{}
	q, _, _ := newTestQueue(sender, SyncConfig{})
	ctx := context.Background()
	task := domain.Task{ID: 1, Name: "x"}
	muts := []domain.Mutation{
		{Kind: domain.MutationAddTask, BoardID: "b1", Task: &task},
		{Kind: domain.MutationRenameTask, BoardID: "b1", TaskID: 1, NewName: "y"},
		{Kind: domain.MutationReplaceTasks, BoardID: "b1", Tasks: []domain.Task{task}},
	}
	for _, m := range muts {
		if err := q.Dispatch(ctx, m); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}
	if n, _ := q.Pending(ctx); n != 3 {
		t.Fatalf("Pending() = %d, want 3", n)
	}
	if err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	want := []domain.MutationKind{domain.MutationAddTask, domain.MutationRenameTask, domain.MutationReplaceTasks}
	if got := sender.sentKinds(); !slices.Equal(got, want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	if n, _ := q.Pending(ctx); n != 0 {
		t.Fatalf("Pending() = %d after flush", n)
	}
}

func TestSyncQueueRejectsInvalidMutation(t *testing.T) {
	q, store, _ := newTestQueue(&scriptedSender{}, SyncConfig{})
	err := q.Dispatch(context.Background(), domain.Mutation{Kind: domain.MutationRemoveTask, BoardID: "b1"})
	if !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(store.entries) != 0 {
		t.Fatal("invalid mutation was queued")
	}
}

func TestSyncQueueRetryBlocksHead(t *testing.T) {
	sender := &scriptedSender{errs: []error{errOffline}}
	q, store, clock := newTestQueue(sender, SyncConfig{RetryInitial: time.Second, RetryMax: time.Minute})
	ctx := context.Background()
	_ = q.Dispatch(ctx, removeMutation("b1"))
	_ = q.Dispatch(ctx, removeMutation("b2"))

	wait, err := q.drain(ctx, false)
	if !errors.Is(err, errOffline) {
		t.Fatalf("drain() error = %v", err)
	}
	if wait != time.Second {
		t.Fatalf("wait = %v, want 1s", wait)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("later entry delivered past failing head: %v", sender.sentKinds())
	}
	if store.entries[0].Attempts != 1 || store.entries[0].LastError == "" {
		t.Fatalf("unexpected head %#v", store.entries[0])
	}

	wait, err = q.drain(ctx, false)
	if err != nil || wait != time.Second {
		t.Fatalf("drain() before deadline = %v, %v", wait, err)
	}
	if sender.calls != 1 {
		t.Fatalf("head retried before deadline, calls = %d", sender.calls)
	}

	clock.Advance(time.Second)
	if _, err := q.drain(ctx, false); err != nil {
		t.Fatalf("drain() error = %v", err)
	}
	if len(sender.sent) != 2 || sender.sent[0].BoardID != "b1" || sender.sent[1].BoardID != "b2" {
		t.Fatalf("unexpected delivery %#v", sender.sent)
	}
}

func TestSyncQueuePermanentFailureGoesDead(t *testing.T) {
	sender := &scriptedSender{errs: []error{fmt.Errorf("status 400: %w", ErrPermanent)}}
	q, _, _ := newTestQueue(sender, SyncConfig{})
	var failed []OutboxEntry
	q.OnFailure(func(e OutboxEntry, err error) {
		failed = append(failed, e)
	})
	ctx := context.Background()
	_ = q.Dispatch(ctx, removeMutation("b1"))
	_ = q.Dispatch(ctx, removeMutation("b2"))

	if err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(failed) != 1 || failed[0].Mutation.BoardID != "b1" || !failed[0].Dead {
		t.Fatalf("unexpected failures %#v", failed)
	}
	if len(sender.sent) != 1 || sender.sent[0].BoardID != "b2" {
		t.Fatalf("expected queue to continue past dead entry, sent %#v", sender.sent)
	}
	dead, err := q.Dead(ctx)
	if err != nil || len(dead) != 1 {
		t.Fatalf("Dead() = %d, %v", len(dead), err)
	}
}

func TestSyncQueueGivesUpAfterMaxAttempts(t *testing.T) {
	sender := &scriptedSender{errs: []error{errOffline, errOffline, errOffline}}
	q, _, _ := newTestQueue(sender, SyncConfig{MaxAttempts: 3, RetryInitial: time.Millisecond, RetryMax: time.Millisecond})
	var failed int
	q.OnFailure(func(OutboxEntry, error) { failed++ })
	ctx := context.Background()
	_ = q.Dispatch(ctx, removeMutation("b1"))

	for i := 0; i < 2; i++ {
		if err := q.Flush(ctx); !errors.Is(err, errOffline) {
			t.Fatalf("Flush() #%d error = %v", i, err)
		}
	}
	if err := q.Flush(ctx); err != nil {
		t.Fatalf("final Flush() error = %v", err)
	}
	if failed != 1 || sender.calls != 3 {
		t.Fatalf("failed = %d, calls = %d", failed, sender.calls)
	}
	if n, _ := q.Pending(ctx); n != 0 {
		t.Fatalf("Pending() = %d", n)
	}
}

func TestSyncQueueBackoff(t *testing.T) {
	q, _, _ := newTestQueue(&scriptedSender{}, SyncConfig{RetryInitial: 100 * time.Millisecond, RetryMax: time.Second})
	cases := map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		4: 800 * time.Millisecond,
		5: time.Second,
		9: time.Second,
	}
	for attempt, want := range cases {
		if got := q.backoff(attempt); got != want {
			t.Fatalf("backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
	q.jitter = func() float64 { return 1 }
	if got := q.backoff(1); got != 120*time.Millisecond {
		t.Fatalf("backoff with max jitter = %v", got)
	}
}

func TestSyncQueueRunDeliversDispatched(t *testing.T) {
	sender := &scriptedSender{}
	q, _, _ := newTestQueue(sender, SyncConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	_ = q.Dispatch(context.Background(), removeMutation("b1"))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sender.sentKinds()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := sender.sentKinds(); len(got) != 1 {
		t.Fatalf("expected delivery by worker, got %v", got)
	}
}
