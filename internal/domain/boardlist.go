package domain

// BoardList is the ordered board collection of one user.
type BoardList struct {
	UserID string
	Boards []Board
}

// Append adds a persisted board at the end.
func (l BoardList) Append(b Board) (BoardList, error) {
	if IsBlank(b.Name) {
		return l, ErrBlankName
	}
	if b.ID == "" {
		return l, ErrInvalidID
	}
	boards := make([]Board, 0, len(l.Boards)+1)
	boards = append(boards, l.Boards...)
	boards = append(boards, b.Clone())
	return BoardList{UserID: l.UserID, Boards: boards}, nil
}

// Remove drops the board with id.
func (l BoardList) Remove(id string) (BoardList, bool) {
	boards := make([]Board, 0, len(l.Boards))
	for _, b := range l.Boards {
		if b.ID != id {
			boards = append(boards, b)
		}
	}
	if len(boards) == len(l.Boards) {
		return l, false
	}
	return BoardList{UserID: l.UserID, Boards: boards}, true
}

// Find returns the board with id.
func (l BoardList) Find(id string) (Board, bool) {
	for _, b := range l.Boards {
		if b.ID == id {
			return b, true
		}
	}
	return Board{}, false
}

// WithTasks replaces the task sequence of board id.
func (l BoardList) WithTasks(id string, tasks []Task) (BoardList, bool) {
	for i, b := range l.Boards {
		if b.ID != id {
			continue
		}
		boards := make([]Board, len(l.Boards))
		copy(boards, l.Boards)
		b.Tasks = CloneTasks(tasks)
		boards[i] = b
		return BoardList{UserID: l.UserID, Boards: boards}, true
	}
	return l, false
}
