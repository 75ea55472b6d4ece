package domain

// TaskList is the task sequence of one board. Transitions return a new value and
// never modify the receiver's backing slice.
type TaskList struct {
	BoardID string
	Tasks   []Task
}

// NewTaskList copies tasks into a list for boardID.
func NewTaskList(boardID string, tasks []Task) TaskList {
	return TaskList{BoardID: boardID, Tasks: CloneTasks(tasks)}
}

// Find returns the task with id.
func (l TaskList) Find(id int64) (Task, bool) {
	idx := IndexOfTask(l.Tasks, id)
	if idx < 0 {
		return Task{}, false
	}
	return l.Tasks[idx], true
}

// Add prepends task.
func (l TaskList) Add(task Task) (TaskList, error) {
	if IsBlank(task.Name) {
		return l, ErrBlankName
	}
	if IndexOfTask(l.Tasks, task.ID) >= 0 {
		return l, ErrDuplicateTaskID
	}
	tasks := make([]Task, 0, len(l.Tasks)+1)
	tasks = append(tasks, task)
	tasks = append(tasks, l.Tasks...)
	return TaskList{BoardID: l.BoardID, Tasks: tasks}, nil
}

// Remove drops the task with id.
func (l TaskList) Remove(id int64) (TaskList, bool) {
	if IndexOfTask(l.Tasks, id) < 0 {
		return l, false
	}
	tasks := make([]Task, 0, len(l.Tasks)-1)
	for _, t := range l.Tasks {
		if t.ID != id {
			tasks = append(tasks, t)
		}
	}
	return TaskList{BoardID: l.BoardID, Tasks: tasks}, true
}

// Complete flips the completion of task id. completed and editing are the task's
// current flags. Nothing changes while editing. A task becoming completed moves to
// the end of the sequence; a task being reopened stays where it is.
func (l TaskList) Complete(id int64, completed, editing bool) (TaskList, bool) {
	if editing {
		return l, false
	}
	idx := IndexOfTask(l.Tasks, id)
	if idx < 0 {
		return l, false
	}
	tasks := CloneTasks(l.Tasks)
	if completed {
		tasks[idx].Completed = false
		return TaskList{BoardID: l.BoardID, Tasks: tasks}, true
	}
	tasks[idx].Completed = true
	return TaskList{BoardID: l.BoardID, Tasks: MoveIndex(tasks, idx, len(tasks)-1)}, true
}

// ToggleEdit sets the edit flag of task id to !editing.
func (l TaskList) ToggleEdit(id int64, editing bool) (TaskList, bool) {
	idx := IndexOfTask(l.Tasks, id)
	if idx < 0 {
		return l, false
	}
	tasks := CloneTasks(l.Tasks)
	tasks[idx].Edit = !editing
	return TaskList{BoardID: l.BoardID, Tasks: tasks}, true
}

// Rename sets the name of task id and leaves edit mode.
func (l TaskList) Rename(id int64, name string) (TaskList, bool, error) {
	if IsBlank(name) {
		return l, false, ErrBlankName
	}
	idx := IndexOfTask(l.Tasks, id)
	if idx < 0 {
		return l, false, nil
	}
	tasks := CloneTasks(l.Tasks)
	tasks[idx].Edit = false
	tasks[idx].Name = name
	return TaskList{BoardID: l.BoardID, Tasks: tasks}, true, nil
}

// Reorder moves task activeID to the position currently held by overID.
func (l TaskList) Reorder(activeID, overID int64) (TaskList, bool) {
	if activeID == overID {
		return l, false
	}
	from := IndexOfTask(l.Tasks, activeID)
	to := IndexOfTask(l.Tasks, overID)
	if from < 0 || to < 0 {
		return l, false
	}
	return TaskList{BoardID: l.BoardID, Tasks: MoveIndex(l.Tasks, from, to)}, true
}

// Replace swaps in a whole sequence, dropping any edit flags.
func (l TaskList) Replace(tasks []Task) TaskList {
	out := CloneTasks(tasks)
	for i := range out {
		out[i].Edit = false
	}
	return TaskList{BoardID: l.BoardID, Tasks: out}
}
