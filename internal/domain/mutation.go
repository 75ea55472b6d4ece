package domain

// MutationKind names one persistence operation produced by a state transition.
type MutationKind string

// MutationKind values, one per persistence endpoint.
const (
	MutationRemoveBoard  MutationKind = "remove_board"
	MutationAddTask      MutationKind = "add_task"
	MutationRemoveTask   MutationKind = "remove_task"
	MutationReplaceTasks MutationKind = "replace_tasks"
	MutationRenameTask   MutationKind = "rename_task"
)

// Mutation describes a change already applied locally that still has to reach the server.
type Mutation struct {
	Kind    MutationKind
	BoardID string
	TaskID  int64
	Task    *Task
	Tasks   []Task
	NewName string
}

// Validate checks that m carries the fields its kind needs.
func (m Mutation) Validate() error {
	if m.BoardID == "" {
		return ErrInvalidID
	}
	switch m.Kind {
	case MutationRemoveBoard, MutationReplaceTasks:
		return nil
	case MutationAddTask:
		if m.Task == nil || m.Task.ID <= 0 {
			return ErrInvalidID
		}
		return nil
	case MutationRemoveTask:
		if m.TaskID <= 0 {
			return ErrInvalidID
		}
		return nil
	case MutationRenameTask:
		if m.TaskID <= 0 {
			return ErrInvalidID
		}
		if IsBlank(m.NewName) {
			return ErrBlankName
		}
		return nil
	default:
		return ErrUnknownMutation
	}
}
