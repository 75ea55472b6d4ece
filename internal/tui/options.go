package tui

import "context"

// SyncFailure describes one change the sync queue gave up on.
type SyncFailure struct {
	Kind    string
	BoardID string
	Err     string
}

type Option func(*Model)

// WithContext sets the context passed to controller operations.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithSyncFailures streams sync failures into the status line.
func WithSyncFailures(ch <-chan SyncFailure) Option {
	return func(m *Model) {
		m.failures = ch
	}
}

// WithClipboard replaces the clipboard writer used by the copy binding.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// WithTitle sets the header shown above both views.
func WithTitle(title string) Option {
	return func(m *Model) {
		m.title = title
	}
}
