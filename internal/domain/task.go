package domain

import (
	"regexp"
	"sync"
	"time"
)

// blankPattern matches empty and whitespace-only input.
var blankPattern = regexp.MustCompile(`^\s*$`)

// IsBlank reports whether s is empty or whitespace-only.
func IsBlank(s string) bool {
	return blankPattern.MatchString(s)
}

// Task is one to-do item on a board.
type Task struct {
	ID        int64
	Name      string
	Completed bool
	// Edit marks an inline rename in progress. It is view state only and never persisted.
	Edit bool
}

// NewTask builds an incomplete task. Blank names are rejected.
func NewTask(id int64, name string) (Task, error) {
	if id <= 0 {
		return Task{}, ErrInvalidID
	}
	if IsBlank(name) {
		return Task{}, ErrBlankName
	}
	return Task{ID: id, Name: name}, nil
}

// CompletedCount counts completed tasks.
func CompletedCount(tasks []Task) int {
	n := 0
	for _, t := range tasks {
		if t.Completed {
			n++
		}
	}
	return n
}

// CloneTasks returns an independent copy of tasks. A nil input yields an empty slice.
func CloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}

// TaskIDSource hands out creation-timestamp task ids in milliseconds.
// Ids are strictly increasing even when several tasks are created within one millisecond.
type TaskIDSource struct {
	mu    sync.Mutex
	clock func() time.Time
	last  int64
}

// NewTaskIDSource constructs an id source. A nil clock uses time.Now.
func NewTaskIDSource(clock func() time.Time) *TaskIDSource {
	if clock == nil {
		clock = time.Now
	}
	return &TaskIDSource{clock: clock}
}

// Next returns the next task id.
func (s *TaskIDSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.clock().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

// Observe raises the floor so ids already present on a board are never reissued.
func (s *TaskIDSource) Observe(tasks []Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		if t.ID > s.last {
			s.last = t.ID
		}
	}
}
