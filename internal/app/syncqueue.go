package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// SyncConfig holds retry settings for the sync queue.
type SyncConfig struct {
	MaxAttempts  int
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// DefaultSyncConfig returns the default retry policy.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		MaxAttempts:  8,
		RetryInitial: 250 * time.Millisecond,
		RetryMax:     30 * time.Second,
	}
}

// FailureHandler receives entries the queue gave up on.
type FailureHandler func(OutboxEntry, error)

// SyncQueue is a durable outbound queue of mutations. Entries are delivered
// strictly in append order; a failing head blocks the entries behind it.
type SyncQueue struct {
	store     OutboxStore
	sender    MutationSender
	clock     Clock
	cfg       SyncConfig
	jitter    func() float64
	onFailure FailureHandler

	deliverMu sync.Mutex
	wake      chan struct{}
}

// NewSyncQueue constructs a queue over store delivering through sender.
func NewSyncQueue(store OutboxStore, sender MutationSender, clock Clock, cfg SyncConfig) *SyncQueue {
	def := DefaultSyncConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = def.RetryInitial
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = def.RetryMax
	}
	if cfg.RetryMax < cfg.RetryInitial {
		cfg.RetryMax = cfg.RetryInitial
	}
	if clock == nil {
		clock = time.Now
	}
	return &SyncQueue{
		store:  store,
		sender: sender,
		clock:  clock,
		cfg:    cfg,
		jitter: rand.Float64,
		wake:   make(chan struct{}, 1),
	}
}

// OnFailure sets the handler for dead entries.
func (q *SyncQueue) OnFailure(fn FailureHandler) *SyncQueue {
	q.onFailure = fn
	return q
}

// Dispatch persists m and wakes the worker. It does not wait for delivery.
func (q *SyncQueue) Dispatch(ctx context.Context, m domain.Mutation) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("dispatch %s: %w", m.Kind, err)
	}
	if _, err := q.store.Append(ctx, m, q.clock()); err != nil {
		return fmt.Errorf("dispatch %s: %w", m.Kind, err)
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending reports how many entries still wait for delivery.
func (q *SyncQueue) Pending(ctx context.Context) (int, error) {
	entries, err := q.store.Pending(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Dead lists entries the queue gave up on.
func (q *SyncQueue) Dead(ctx context.Context) ([]OutboxEntry, error) {
	return q.store.ListDead(ctx)
}

// Flush delivers everything deliverable now, ignoring backoff deadlines. It
// stops at the first retryable failure and returns that error.
func (q *SyncQueue) Flush(ctx context.Context) error {
	_, err := q.drain(ctx, true)
	return err
}

// Run delivers entries until ctx is done.
func (q *SyncQueue) Run(ctx context.Context) error {
	for {
		wait, err := q.drain(ctx, false)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && wait <= 0 {
			wait = q.cfg.RetryInitial
		}

		var timer *time.Timer
		var fire <-chan time.Time
		if wait > 0 {
			timer = time.NewTimer(wait)
			fire = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-q.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// drain delivers pending entries in order. It returns how long to wait before
// the blocked head may be retried, or zero when the queue is empty.
func (q *SyncQueue) drain(ctx context.Context, force bool) (time.Duration, error) {
	q.deliverMu.Lock()
	defer q.deliverMu.Unlock()
	for {
		entries, err := q.store.Pending(ctx)
		if err != nil {
			return 0, fmt.Errorf("load outbox: %w", err)
		}
		if len(entries) == 0 {
			return 0, nil
		}
		for _, entry := range entries {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			now := q.clock()
			if !force && entry.NextAttemptAt.After(now) {
				return entry.NextAttemptAt.Sub(now), nil
			}
			wait, err := q.deliver(ctx, entry)
			if err != nil {
				return wait, err
			}
		}
	}
}

// deliver sends one entry and records the outcome. A non-nil error means the
// entry stays at the head of the queue.
func (q *SyncQueue) deliver(ctx context.Context, entry OutboxEntry) (time.Duration, error) {
	sendErr := q.sender.Send(ctx, entry.Mutation)
	if sendErr == nil {
		if err := q.store.MarkDelivered(ctx, entry.Seq); err != nil {
			return 0, fmt.Errorf("mark delivered %d: %w", entry.Seq, err)
		}
		return 0, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	attempts := entry.Attempts + 1
	if errors.Is(sendErr, ErrPermanent) || attempts >= q.cfg.MaxAttempts {
		if err := q.store.MarkDead(ctx, entry.Seq, sendErr.Error()); err != nil {
			return 0, fmt.Errorf("mark dead %d: %w", entry.Seq, err)
		}
		entry.Attempts = attempts
		entry.LastError = sendErr.Error()
		entry.Dead = true
		if q.onFailure != nil {
			q.onFailure(entry, sendErr)
		}
		return 0, nil
	}

	delay := q.backoff(attempts)
	if err := q.store.MarkRetry(ctx, entry.Seq, attempts, sendErr.Error(), q.clock().Add(delay)); err != nil {
		return 0, fmt.Errorf("mark retry %d: %w", entry.Seq, err)
	}
	return delay, fmt.Errorf("deliver %s #%d (attempt %d): %w", entry.Mutation.Kind, entry.Seq, attempts, sendErr)
}

// backoff returns initial*2^(attempt-1) capped at the configured max, with +/-20% jitter.
func (q *SyncQueue) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return q.cfg.RetryInitial
	}
	delay := float64(q.cfg.RetryInitial) * math.Pow(2, float64(attempt-1))
	if delay > float64(q.cfg.RetryMax) {
		delay = float64(q.cfg.RetryMax)
	}
	jitter := 0.2 * delay
	return time.Duration(delay + (q.jitter()-0.5)*2*jitter)
}
